package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

type NewProvider struct {
	Name          string
	LicenseNumber string
	Specialty     string
	// Available defaults to true.
	Available *bool
}

type ProviderPatch struct {
	Name          *string
	LicenseNumber *string
	Specialty     *string
}

func validateLicense(license string) error {
	if n := len(license); n < 5 || n > 50 {
		return apperr.Validation("invalid_license_number", "license number must be 5 to 50 characters")
	}
	return nil
}

func (s *Service) RegisterProvider(ctx context.Context, in NewProvider) (domain.Provider, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	if in.Name == "" {
		return domain.Provider{}, apperr.Validation("invalid_name", "provider name is required")
	}
	if err := validateLicense(in.LicenseNumber); err != nil {
		return domain.Provider{}, err
	}

	p := domain.Provider{
		ID:            uuid.New(),
		Name:          in.Name,
		LicenseNumber: in.LicenseNumber,
		Specialty:     strings.TrimSpace(in.Specialty),
		Available:     true,
		Status:        domain.ProviderActive,
	}
	if in.Available != nil {
		p.Available = *in.Available
	}

	var created domain.Provider
	err := s.withUnique(ctx, store.EntityProvider, domain.FieldLicenseNumber, p.LicenseNumber, "", func(ctx context.Context) error {
		rec, err := s.store.Create(ctx, store.EntityProvider, domain.ProviderRecord(p))
		if err != nil {
			return apperr.FromStore(err, "provider")
		}
		created, err = domain.ProviderFromRecord(rec)
		return err
	})
	if err != nil {
		return domain.Provider{}, err
	}

	s.logger.InfoContext(ctx, "provider registered", "provider_id", created.ID)
	return created, nil
}

// GetProvider returns retired providers too; they stay readable for the
// appointments that reference them.
func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	rec, err := s.store.GetByID(ctx, store.EntityProvider, id.String())
	if err != nil {
		return domain.Provider{}, apperr.FromStore(err, "provider")
	}
	p, err := domain.ProviderFromRecord(rec)
	if err != nil {
		return domain.Provider{}, apperr.Internal("corrupt_provider", err)
	}
	return p, nil
}

func (s *Service) ListProviders(ctx context.Context, offset, limit int) ([]domain.Provider, error) {
	offset, limit = page(offset, limit)
	recs, err := s.store.List(ctx, store.EntityProvider, offset, limit)
	if err != nil {
		return nil, apperr.FromStore(err, "provider")
	}
	return decodeProviders(recs)
}

// ListAvailableProviders pages through providers whose availability flag is
// set. Lifecycle status is not consulted.
func (s *Service) ListAvailableProviders(ctx context.Context, offset, limit int) ([]domain.Provider, error) {
	offset, limit = page(offset, limit)
	recs, err := s.store.QueryByField(ctx, store.EntityProvider, "available", true)
	if err != nil {
		return nil, apperr.FromStore(err, "provider")
	}
	if offset >= len(recs) {
		return []domain.Provider{}, nil
	}
	recs = recs[offset:]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return decodeProviders(recs)
}

// ListProvidersBySpecialty matches the specialty exactly after trimming.
func (s *Service) ListProvidersBySpecialty(ctx context.Context, specialty string) ([]domain.Provider, error) {
	specialty = strings.TrimSpace(specialty)
	if specialty == "" {
		return nil, apperr.Validation("invalid_specialty", "specialty is required")
	}
	recs, err := s.store.QueryByField(ctx, store.EntityProvider, "specialty", specialty)
	if err != nil {
		return nil, apperr.FromStore(err, "provider")
	}
	return decodeProviders(recs)
}

// maxAverageRating is the highest average a provider can hold.
const maxAverageRating = 5.0

// ListProvidersByMinRating returns providers whose stored average rating is
// at least minRating. Unrated providers hold 0.
func (s *Service) ListProvidersByMinRating(ctx context.Context, minRating float64) ([]domain.Provider, error) {
	if minRating < 0 || minRating > maxAverageRating {
		return nil, apperr.Validation("invalid_min_rating", "minimum rating must be between 0 and %v", maxAverageRating)
	}
	recs, err := s.store.QueryRange(ctx, store.EntityProvider, domain.FieldAverageRating, minRating, maxAverageRating)
	if err != nil {
		return nil, apperr.FromStore(err, "provider")
	}
	return decodeProviders(recs)
}

func decodeProviders(recs []store.Record) ([]domain.Provider, error) {
	out := make([]domain.Provider, 0, len(recs))
	for _, rec := range recs {
		p, err := domain.ProviderFromRecord(rec)
		if err != nil {
			return nil, apperr.Internal("corrupt_provider", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateProvider changes profile fields. Rating and consultation totals are
// derived and cannot be patched.
func (s *Service) UpdateProvider(ctx context.Context, id uuid.UUID, patch ProviderPatch) (domain.Provider, error) {
	current, err := s.GetProvider(ctx, id)
	if err != nil {
		return domain.Provider{}, err
	}

	rec := store.Record{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Provider{}, apperr.Validation("invalid_name", "provider name is required")
		}
		rec["name"] = name
	}
	if patch.Specialty != nil {
		rec["specialty"] = strings.TrimSpace(*patch.Specialty)
	}

	apply := func(ctx context.Context) error {
		if len(rec) == 0 {
			return nil
		}
		updated, err := s.store.Update(ctx, store.EntityProvider, id.String(), rec)
		if err != nil {
			return apperr.FromStore(err, "provider")
		}
		current, err = domain.ProviderFromRecord(updated)
		return err
	}

	if patch.LicenseNumber != nil && strings.TrimSpace(*patch.LicenseNumber) != current.LicenseNumber {
		license := strings.TrimSpace(*patch.LicenseNumber)
		if err := validateLicense(license); err != nil {
			return domain.Provider{}, err
		}
		rec[domain.FieldLicenseNumber] = license
		err = s.withUnique(ctx, store.EntityProvider, domain.FieldLicenseNumber, license, id.String(), apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return domain.Provider{}, err
	}
	return current, nil
}

func (s *Service) SetProviderAvailability(ctx context.Context, id uuid.UUID, available bool) (domain.Provider, error) {
	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return domain.Provider{}, err
	}
	if p.Available == available {
		return p, nil
	}
	rec, err := s.store.Update(ctx, store.EntityProvider, id.String(), store.Record{"available": available})
	if err != nil {
		return domain.Provider{}, apperr.FromStore(err, "provider")
	}
	s.logger.InfoContext(ctx, "provider availability changed", "provider_id", id, "available", available)
	return domain.ProviderFromRecord(rec)
}

// SetProviderStatus moves a provider between active and suspended, or
// retires it. Retired providers cannot come back.
func (s *Service) SetProviderStatus(ctx context.Context, id uuid.UUID, status domain.ProviderStatus) (domain.Provider, error) {
	if !status.Valid() {
		return domain.Provider{}, apperr.Validation("invalid_status", "unknown provider status %q", status)
	}
	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return domain.Provider{}, err
	}
	if !p.Status.CanTransition(status) {
		return domain.Provider{}, apperr.Conflict("invalid_status_transition",
			"provider cannot move from %s to %s", p.Status, status)
	}
	if p.Status == status {
		return p, nil
	}
	rec, err := s.store.Update(ctx, store.EntityProvider, id.String(), store.Record{"status": string(status)})
	if err != nil {
		return domain.Provider{}, apperr.FromStore(err, "provider")
	}
	s.logger.InfoContext(ctx, "provider status changed", "provider_id", id, "from", p.Status, "to", status)
	return domain.ProviderFromRecord(rec)
}
