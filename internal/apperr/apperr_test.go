package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantCode string
	}{
		{"not found", store.ErrNotFound, KindNotFound, "provider_not_found"},
		{"conflict", fmt.Errorf("%w: license", store.ErrConflict), KindConflict, "duplicate_provider"},
		{"unavailable", store.ErrUnavailable, KindInfrastructure, "store_unavailable"},
		{"deadline", context.DeadlineExceeded, KindInfrastructure, "store_unavailable"},
		{"unknown", errors.New("syntax error"), KindInternal, "store_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStore(tt.err, "provider")
			if got := KindOf(err); got != tt.wantKind {
				t.Fatalf("kind = %s, want %s", got, tt.wantKind)
			}
			if got := CodeOf(err); got != tt.wantCode {
				t.Fatalf("code = %q, want %q", got, tt.wantCode)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("mapped error must wrap the original")
			}
		})
	}
}

func TestFromStore_KeepsClassifiedErrors(t *testing.T) {
	orig := Conflict("slot_unavailable", "taken")
	if got := FromStore(orig, "appointment"); got != error(orig) {
		t.Fatalf("FromStore changed an already classified error: %v", got)
	}
}

func TestPartialWinsOverWrappedKind(t *testing.T) {
	err := Partial("recompute_average", "result", Infrastructure("store_unavailable", store.ErrUnavailable))
	if KindOf(err) != KindPartial {
		t.Fatalf("kind = %s, want partial", KindOf(err))
	}
	if CodeOf(err) != "partial_failure" {
		t.Fatalf("code = %q", CodeOf(err))
	}
	if IsRetryable(err) {
		t.Fatalf("partial errors must not be retried blindly")
	}
	var p *PartialError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &p) || p.Result != "result" {
		t.Fatalf("PartialError not recoverable through wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Infrastructure("lock_unavailable", errors.New("redis down"))) {
		t.Fatalf("infrastructure errors are retryable")
	}
	if IsRetryable(Validation("invalid_score", "bad")) {
		t.Fatalf("validation errors are not retryable")
	}
	if Is(nil, KindInternal) {
		t.Fatalf("nil error has no kind")
	}
}
