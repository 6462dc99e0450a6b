package weft

import (
	"context"
	"testing"
)

func TestPlanCachePutGetRoundTrip(t *testing.T) {
	c := &PlanCache{Dir: t.TempDir()}
	blob := []byte(`{"units":[{"id":"u1"}]}`)

	dig, err := c.Put(context.Background(), blob)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if dig == "" {
		t.Fatal("expected non-empty digest")
	}

	got, err := c.Get(context.Background(), dig)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("round-tripped blob mismatch: got %q, want %q", got, blob)
	}
}

func TestPlanCacheDigestIsContentAddressed(t *testing.T) {
	a := digest([]byte("same content"))
	b := digest([]byte("same content"))
	if a != b {
		t.Errorf("expected identical digests for identical content: %q vs %q", a, b)
	}
	c := digest([]byte("different content"))
	if a == c {
		t.Error("expected different digests for different content")
	}
}

func TestPlanCacheGetMissingWithNoRemoteIsIOFailure(t *testing.T) {
	c := &PlanCache{Dir: t.TempDir()}
	_, err := c.Get(context.Background(), "0000deadbeef")
	if err == nil {
		t.Fatal("expected error for missing entry with no remote configured")
	}
	if _, ok := err.(*IOFailure); !ok {
		t.Errorf("expected *IOFailure, got %T: %v", err, err)
	}
}
