// Package store is the persistence boundary of the scheduling core: a generic
// keyed record store with query-by-field and range queries. Backends live in
// the postgres and memory subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityProvider       EntityType = "provider"
	EntitySubject        EntityType = "subject"
	EntityRoom           EntityType = "room"
	EntityAppointment    EntityType = "appointment"
	EntityRating         EntityType = "rating"
	EntityLifecycleState EntityType = "lifecycle_state"
	EntityEventLog       EntityType = "event_log"
)

// Reserved record keys maintained by every backend.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("record conflicts with an existing record")
	ErrUnavailable = errors.New("store unavailable")
)

// UniqueFields lists the per-entity fields that backends enforce as unique.
// The owning components check these explicitly; the backend constraint is a
// second line of defense.
var UniqueFields = map[EntityType][]string{
	EntityProvider:       {"license_number"},
	EntityRoom:           {"name"},
	EntityLifecycleState: {"code"},
	EntityRating:         {"appointment_id"},
}

// Store is implemented by the postgres and memory backends and by the
// retry/timeout policy wrapper.
type Store interface {
	Create(ctx context.Context, entity EntityType, fields Record) (Record, error)
	// GetByID returns ErrNotFound when no record has the id.
	GetByID(ctx context.Context, entity EntityType, id string) (Record, error)
	List(ctx context.Context, entity EntityType, offset, limit int) ([]Record, error)
	// Update merges patch into the stored record and returns the result.
	Update(ctx context.Context, entity EntityType, id string, patch Record) (Record, error)
	Delete(ctx context.Context, entity EntityType, id string) (bool, error)
	QueryByField(ctx context.Context, entity EntityType, field string, value any) ([]Record, error)
	// QueryRange returns records whose field lies in [low, high].
	QueryRange(ctx context.Context, entity EntityType, field string, low, high any) ([]Record, error)
	Ping(ctx context.Context) error
}

// Record is a flat JSON-compatible document.
type Record map[string]any

func (r Record) ID() string {
	return r.String(FieldID)
}

func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func (r Record) Int(key string) int {
	return int(r.Float(key))
}

// UUID parses key as a uuid. Missing or empty values yield uuid.Nil.
func (r Record) UUID(key string) (uuid.UUID, error) {
	s := r.String(key)
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("field %s: %w", key, err)
	}
	return id, nil
}

func (r Record) Time(key string) time.Time {
	s := r.String(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r Record) Map(key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FormatTime renders timestamps the way backends store them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
