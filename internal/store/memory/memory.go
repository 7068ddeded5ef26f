// Package memory is an in-process store.Store used for single-node
// deployments and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

type table struct {
	order []string
	rows  map[string]store.Record
}

type Store struct {
	mu     sync.RWMutex
	tables map[store.EntityType]*table
	unique map[store.EntityType][]string
	now    func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store enforcing store.UniqueFields.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[store.EntityType]*table),
		unique: make(map[store.EntityType][]string),
		now:    time.Now,
	}
	for entity, fields := range store.UniqueFields {
		s.unique[entity] = append([]string(nil), fields...)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// table returns the entity's table, creating it. Callers hold the write lock.
func (s *Store) table(entity store.EntityType) *table {
	t, ok := s.tables[entity]
	if !ok {
		t = &table{rows: make(map[string]store.Record)}
		s.tables[entity] = t
	}
	return t
}

var emptyTable = &table{rows: map[string]store.Record{}}

// view is the read-locked counterpart of table; it never mutates s.tables.
func (s *Store) view(entity store.EntityType) *table {
	if t, ok := s.tables[entity]; ok {
		return t
	}
	return emptyTable
}

// normalize gives values the shape they would have after a JSON round trip,
// so numbers compare the same way they do in the postgres backend.
func normalize(r store.Record) (store.Record, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	out := store.Record{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func (s *Store) checkUnique(entity store.EntityType, t *table, rec store.Record) error {
	for _, field := range s.unique[entity] {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		for id, other := range t.rows {
			if id == rec.ID() {
				continue
			}
			if reflect.DeepEqual(other[field], v) {
				return fmt.Errorf("%w: %s.%s", store.ErrConflict, entity, field)
			}
		}
	}
	return nil
}

func (s *Store) Create(ctx context.Context, entity store.EntityType, fields store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	if rec.ID() == "" {
		rec[store.FieldID] = uuid.NewString()
	}
	now := store.FormatTime(s.now())
	rec[store.FieldCreatedAt] = now
	rec[store.FieldUpdatedAt] = now

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(entity)
	if _, exists := t.rows[rec.ID()]; exists {
		return nil, fmt.Errorf("%w: %s %s already exists", store.ErrConflict, entity, rec.ID())
	}
	if err := s.checkUnique(entity, t, rec); err != nil {
		return nil, err
	}
	t.rows[rec.ID()] = rec
	t.order = append(t.order, rec.ID())
	return rec.Clone(), nil
}

func (s *Store) GetByID(ctx context.Context, entity store.EntityType, id string) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.view(entity).rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) List(ctx context.Context, entity store.EntityType, offset, limit int) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.view(entity)
	if offset < 0 {
		offset = 0
	}
	out := []store.Record{}
	for i := offset; i < len(t.order); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, t.rows[t.order[i]].Clone())
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, entity store.EntityType, id string, patch store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := normalize(patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(entity)
	current, ok := t.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := current.Clone()
	for k, v := range p {
		if k == store.FieldID || k == store.FieldCreatedAt {
			continue
		}
		next[k] = v
	}
	next[store.FieldUpdatedAt] = store.FormatTime(s.now())
	if err := s.checkUnique(entity, t, next); err != nil {
		return nil, err
	}
	t.rows[id] = next
	return next.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, entity store.EntityType, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(entity)
	if _, ok := t.rows[id]; !ok {
		return false, nil
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *Store) QueryByField(ctx context.Context, entity store.EntityType, field string, value any) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := normalizeValue(value)

	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.view(entity)
	out := []store.Record{}
	for _, id := range t.order {
		rec := t.rows[id]
		if reflect.DeepEqual(rec[field], want) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *Store) QueryRange(ctx context.Context, entity store.EntityType, field string, low, high any) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := normalizeValue(low), normalizeValue(high)

	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.view(entity)
	out := []store.Record{}
	for _, id := range t.order {
		rec := t.rows[id]
		if inRange(rec[field], lo, hi) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func inRange(v, lo, hi any) bool {
	switch x := v.(type) {
	case string:
		l, ok1 := lo.(string)
		h, ok2 := hi.(string)
		return ok1 && ok2 && x >= l && x <= h
	case float64:
		l, ok1 := lo.(float64)
		h, ok2 := hi.(float64)
		return ok1 && ok2 && x >= l && x <= h
	}
	return false
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
