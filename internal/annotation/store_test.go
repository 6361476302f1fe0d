package annotation

import (
	"testing"
	"time"

	"github.com/kiosklink/assist/internal/domain"
)

func circle(id string, ttlMs int) domain.Annotation {
	return domain.Annotation{
		ID:    id,
		Shape: domain.ShapeCircle,
		Start: domain.NormalizedPoint{X: 0.1, Y: 0.1},
		End:   domain.NormalizedPoint{X: 0.5, Y: 0.5},
		TTLMs: ttlMs,
	}
}

// clockedStore pins the store's clock so expiry is deterministic.
func clockedStore() (*Store, *time.Time) {
	s := NewStore()
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestAnnotationExpiresAfterTTL(t *testing.T) {
	s, now := clockedStore()
	const ttl = 10000

	s.Upsert(circle("a1", ttl))

	*now = now.Add(ttl / 2 * time.Millisecond)
	if _, ok := s.Get("a1"); !ok {
		t.Fatal("annotation should still be present at t0+T/2")
	}

	*now = now.Add((ttl/2 + 1) * time.Millisecond)
	if _, ok := s.Get("a1"); ok {
		t.Fatal("annotation should be gone at t0+T+ε")
	}
	if len(s.Snapshot()) != 0 {
		t.Fatal("snapshot should not contain expired annotations")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	s, now := clockedStore()
	s.Upsert(circle("a1", 1000))
	s.Upsert(circle("a2", 60000))

	*now = now.Add(2 * time.Second)
	s.sweep()

	s.mu.Lock()
	_, gone := s.items["a1"]
	_, kept := s.items["a2"]
	s.mu.Unlock()
	if gone || !kept {
		t.Fatalf("sweep kept the wrong entries (a1 present=%v, a2 present=%v)", gone, kept)
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	s, _ := clockedStore()

	first := circle("a1", 5000)
	first.Color = "#ff0000"
	s.Upsert(first)

	second := circle("a1", 5000)
	second.Color = "#00ff00"
	s.Upsert(second)

	got, ok := s.Get("a1")
	if !ok || got.Color != "#00ff00" {
		t.Fatalf("redelivery should replace by id, got %+v", got)
	}
	if len(s.Snapshot()) != 1 {
		t.Fatal("upsert with the same id must not duplicate")
	}
}

func TestClearsingle(t *testing.T) {
	s, _ := clockedStore()
	s.Upsert(circle("a1", 5000))
	s.Upsert(circle("a2", 5000))

	s.Apply(domain.AnnotationMessage{Type: domain.AnnotationMsgClear, TargetID: "a1"})

	if _, ok := s.Get("a1"); ok {
		t.Fatal("clear{targetId} should remove the targeted annotation")
	}
	if _, ok := s.Get("a2"); !ok {
		t.Fatal("clear{targetId} removed more than its target")
	}
}

func TestClearAll(t *testing.T) {
	s, _ := clockedStore()
	s.Upsert(circle("a1", 5000))
	s.Upsert(circle("a2", 5000))

	s.Apply(domain.AnnotationMessage{Type: domain.AnnotationMsgClear})

	if len(s.Snapshot()) != 0 {
		t.Fatal("clear without targetId should remove everything")
	}
}
