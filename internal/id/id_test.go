package id

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewReturnsDistinctUUIDs(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("expected a uuid, got %q: %v", a, err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected v4 uuid, got v%d", parsed.Version())
	}
}
