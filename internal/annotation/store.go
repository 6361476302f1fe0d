// Package annotation implements the overlay protocol carried on a dedicated
// data channel between the two peers. It is fire-and-forget and never
// touches the media session.
package annotation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/domain"
)

// SweepInterval is how often expired annotations are reaped. Reads also
// filter expired entries, so the TTL property holds regardless of tick
// alignment.
const SweepInterval = 2 * time.Second

type entry struct {
	annotation domain.Annotation
	expiresAt  time.Time
}

// Store is the receiver-side overlay collection, keyed by annotation id.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Apply dispatches one protocol message into the collection.
func (s *Store) Apply(msg domain.AnnotationMessage) {
	switch msg.Type {
	case domain.AnnotationMsgDraw:
		s.Upsert(msg.Annotation)
	case domain.AnnotationMsgClear:
		s.Clear(msg.TargetID)
	}
}

// Upsert inserts or replaces by id (last-write-wins on redelivery) and
// schedules expiry at now+ttl.
func (s *Store) Upsert(a domain.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = entry{
		annotation: a,
		expiresAt:  s.now().Add(a.TTL()),
	}
}

// Clear removes one annotation by id, or all of them when id is empty.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.items = make(map[string]entry)
		return
	}
	delete(s.items, id)
}

// Get reports whether an annotation is currently live.
func (s *Store) Get(id string) (domain.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || !e.expiresAt.After(s.now()) {
		return domain.Annotation{}, false
	}
	return e.annotation, true
}

// Snapshot returns the live annotations, dropping expired entries on read.
func (s *Store) Snapshot() []domain.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]domain.Annotation, 0, len(s.items))
	for id, e := range s.items {
		if !e.expiresAt.After(now) {
			delete(s.items, id)
			continue
		}
		out = append(out, e.annotation)
	}
	return out
}

// Run sweeps expired annotations until ctx is done.
func (s *Store) Run(ctx context.Context) {
	t := time.NewTicker(SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.items {
		if !e.expiresAt.After(now) {
			delete(s.items, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Str("module", "annotation").Int("removed", removed).Msg("swept expired annotations")
	}
}
