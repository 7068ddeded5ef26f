package rating

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/registry"
	"github.com/hackgods/clinic-scheduling/internal/store"
	"github.com/hackgods/clinic-scheduling/internal/store/memory"
)

type fakeAppointments struct {
	get func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}

func (f fakeAppointments) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.get == nil {
		panic("Get not configured")
	}
	return f.get(ctx, id)
}

// providerWriteFailer rejects writes to provider records when updateErr is set.
type providerWriteFailer struct {
	store.Store
	updateErr error
}

func (s *providerWriteFailer) Update(ctx context.Context, entity store.EntityType, id string, patch store.Record) (store.Record, error) {
	if s.updateErr != nil && entity == store.EntityProvider {
		return nil, s.updateErr
	}
	return s.Store.Update(ctx, entity, id, patch)
}

type fixture struct {
	svc      *Service
	reg      *registry.Service
	store    *providerWriteFailer
	provider domain.Provider
	subject  domain.Subject
	appts    map[uuid.UUID]domain.Appointment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	locker := lock.NewLocal(time.Second)
	logger := logging.Discard()

	reg := registry.NewService(mem, locker, logger)
	provider, err := reg.RegisterProvider(ctx, registry.NewProvider{Name: "Dr. Karev", LicenseNumber: "LIC-30001"})
	if err != nil {
		t.Fatalf("RegisterProvider error: %v", err)
	}
	subject, err := reg.RegisterSubject(ctx, registry.NewSubject{Name: "Grace Hopper"})
	if err != nil {
		t.Fatalf("RegisterSubject error: %v", err)
	}

	f := &fixture{
		reg:      reg,
		store:    &providerWriteFailer{Store: mem},
		provider: provider,
		subject:  subject,
		appts:    map[uuid.UUID]domain.Appointment{},
	}
	appointments := fakeAppointments{get: func(_ context.Context, id uuid.UUID) (domain.Appointment, error) {
		a, ok := f.appts[id]
		if !ok {
			return domain.Appointment{}, apperr.NotFound("appointment_not_found", "appointment %s not found", id)
		}
		return a, nil
	}}
	f.svc = NewService(f.store, reg, appointments, locker, nil, logger)
	return f
}

func (f *fixture) appointment() domain.Appointment {
	a := domain.Appointment{ID: uuid.New(), ProviderID: f.provider.ID, SubjectID: f.subject.ID}
	f.appts[a.ID] = a
	return a
}

func (f *fixture) submit(t *testing.T, score int) domain.Rating {
	t.Helper()
	a := f.appointment()
	r, err := f.svc.Submit(context.Background(), SubmitRequest{
		AppointmentID: a.ID,
		SubjectID:     f.subject.ID,
		ProviderID:    f.provider.ID,
		Score:         score,
	})
	if err != nil {
		t.Fatalf("Submit(%d) error: %v", score, err)
	}
	return r
}

func (f *fixture) average(t *testing.T) float64 {
	t.Helper()
	p, err := f.reg.GetProvider(context.Background(), f.provider.ID)
	if err != nil {
		t.Fatalf("GetProvider error: %v", err)
	}
	return p.AverageRating
}

func TestMean(t *testing.T) {
	tests := []struct {
		scores []int
		want   float64
	}{
		{nil, 0},
		{[]int{5}, 5},
		{[]int{4, 2}, 3},
		{[]int{5, 4, 4}, 13.0 / 3.0},
	}
	for _, tt := range tests {
		if got := Mean(tt.scores); got != tt.want {
			t.Errorf("Mean(%v) = %v, want %v", tt.scores, got, tt.want)
		}
	}
}

func TestAverageFollowsSubmitsAndDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	four := f.submit(t, 4)
	if got := f.average(t); got != 4 {
		t.Fatalf("average = %v, want 4", got)
	}
	two := f.submit(t, 2)
	if got := f.average(t); got != 3 {
		t.Fatalf("average = %v, want 3", got)
	}

	if err := f.svc.Delete(ctx, two.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if got := f.average(t); got != 4 {
		t.Fatalf("average after delete = %v, want 4", got)
	}
	if err := f.svc.Delete(ctx, four.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if got := f.average(t); got != 0 {
		t.Fatalf("average with no ratings = %v, want 0", got)
	}
}

func TestUpdateRecomputes(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, 1)
	f.submit(t, 3)

	five := 5
	comment := "  much better on follow-up  "
	updated, err := f.svc.Update(context.Background(), r.ID, UpdateRequest{Score: &five, Comment: &comment})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Score != 5 || updated.Comment != "much better on follow-up" {
		t.Fatalf("updated = %+v", updated)
	}
	if got := f.average(t); got != 4 {
		t.Fatalf("average = %v, want 4", got)
	}
}

func TestSubmit_DuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	a := f.appointment()
	req := SubmitRequest{AppointmentID: a.ID, SubjectID: f.subject.ID, ProviderID: f.provider.ID, Score: 5}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.CodeOf(err) == "duplicate_rating":
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != workers-1 {
		t.Fatalf("ok=%d conflicts=%d, want 1 and %d", ok, conflicts, workers-1)
	}
	if got := f.average(t); got != 5 {
		t.Fatalf("average = %v, want 5", got)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	f := newFixture(t)
	a := f.appointment()
	other, err := f.reg.RegisterSubject(context.Background(), registry.NewSubject{Name: "Someone Else"})
	if err != nil {
		t.Fatalf("RegisterSubject error: %v", err)
	}

	tests := []struct {
		name string
		req  SubmitRequest
		kind apperr.Kind
		code string
	}{
		{
			name: "score too low",
			req:  SubmitRequest{AppointmentID: a.ID, SubjectID: f.subject.ID, ProviderID: f.provider.ID, Score: 0},
			kind: apperr.KindValidation,
			code: "invalid_score",
		},
		{
			name: "score too high",
			req:  SubmitRequest{AppointmentID: a.ID, SubjectID: f.subject.ID, ProviderID: f.provider.ID, Score: 6},
			kind: apperr.KindValidation,
			code: "invalid_score",
		},
		{
			name: "unknown appointment",
			req:  SubmitRequest{AppointmentID: uuid.New(), SubjectID: f.subject.ID, ProviderID: f.provider.ID, Score: 3},
			kind: apperr.KindNotFound,
			code: "appointment_not_found",
		},
		{
			name: "subject does not match appointment",
			req:  SubmitRequest{AppointmentID: a.ID, SubjectID: other.ID, ProviderID: f.provider.ID, Score: 3},
			kind: apperr.KindValidation,
			code: "rating_mismatch",
		},
		{
			name: "unknown provider",
			req:  SubmitRequest{AppointmentID: a.ID, SubjectID: f.subject.ID, ProviderID: uuid.New(), Score: 3},
			kind: apperr.KindNotFound,
			code: "provider_not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tt.req)
			if apperr.KindOf(err) != tt.kind || apperr.CodeOf(err) != tt.code {
				t.Fatalf("err = %v, want %v %q", err, tt.kind, tt.code)
			}
		})
	}
}

func TestSubmit_RecomputeFailureIsPartial(t *testing.T) {
	f := newFixture(t)
	f.store.updateErr = store.ErrUnavailable
	a := f.appointment()

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		AppointmentID: a.ID, SubjectID: f.subject.ID, ProviderID: f.provider.ID, Score: 4,
	})
	if apperr.KindOf(err) != apperr.KindPartial {
		t.Fatalf("kind = %v, want partial (err: %v)", apperr.KindOf(err), err)
	}
	p, ok := err.(*apperr.PartialError)
	if !ok {
		t.Fatalf("err type = %T", err)
	}
	created, ok := p.Result.(domain.Rating)
	if !ok || created.Score != 4 {
		t.Fatalf("partial result = %#v", p.Result)
	}

	if _, err := f.svc.ForAppointment(context.Background(), a.ID); err != nil {
		t.Fatalf("rating should be stored despite the failed recompute: %v", err)
	}

	f.store.updateErr = nil
	avg, err := f.svc.Recompute(context.Background(), f.provider.ID)
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if avg != 4 || f.average(t) != 4 {
		t.Fatalf("average = %v, want 4", avg)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.submit(t, 5)
	f.submit(t, 2)

	for i := 0; i < 3; i++ {
		avg, err := f.svc.Recompute(context.Background(), f.provider.ID)
		if err != nil {
			t.Fatalf("Recompute error: %v", err)
		}
		if avg != 3.5 {
			t.Fatalf("average = %v, want 3.5", avg)
		}
	}
}

func TestRecomputeAll_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(t, 3)

	other, err := f.reg.RegisterProvider(ctx, registry.NewProvider{Name: "Dr. Bailey", LicenseNumber: "LIC-30002"})
	if err != nil {
		t.Fatalf("RegisterProvider error: %v", err)
	}
	// Simulate averages that drifted from their ratings.
	for _, id := range []uuid.UUID{f.provider.ID, other.ID} {
		if _, err := f.store.Update(ctx, store.EntityProvider, id.String(), store.Record{domain.FieldAverageRating: 1.5}); err != nil {
			t.Fatalf("seed drift: %v", err)
		}
	}

	n, err := f.svc.RecomputeAll(ctx)
	if err != nil {
		t.Fatalf("RecomputeAll error: %v", err)
	}
	if n != 2 {
		t.Fatalf("processed = %d, want 2", n)
	}
	if got := f.average(t); got != 3 {
		t.Fatalf("average = %v, want 3", got)
	}
	p, err := f.reg.GetProvider(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetProvider error: %v", err)
	}
	if p.AverageRating != 0 {
		t.Fatalf("unrated provider average = %v, want 0", p.AverageRating)
	}
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.submit(t, 4)
	f.submit(t, 5)

	got, err := f.svc.ForAppointment(ctx, r.AppointmentID)
	if err != nil {
		t.Fatalf("ForAppointment error: %v", err)
	}
	if got.ID != r.ID {
		t.Fatalf("ForAppointment returned %s, want %s", got.ID, r.ID)
	}

	byProvider, err := f.svc.ListByProvider(ctx, f.provider.ID)
	if err != nil {
		t.Fatalf("ListByProvider error: %v", err)
	}
	if len(byProvider) != 2 {
		t.Fatalf("ListByProvider = %d, want 2", len(byProvider))
	}

	_, err = f.svc.ForAppointment(ctx, uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("ForAppointment on unrated appointment err = %v, want not found", err)
	}
	_, err = f.svc.Get(ctx, uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Get unknown err = %v, want not found", err)
	}
}
