package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-api-verification/internal/domain"
)

// VerificationStore keeps verification records in process memory.
//
// Records stay readable until ExpiresAt+retention so a late verify can still
// be told the code expired; after that they are purged lazily on access or by
// Run. The store never holds more than maxEntries records: when full, the
// record closest to expiry is evicted.
type VerificationStore struct {
	mu         sync.Mutex
	records    map[string]domain.VerificationRecord
	maxEntries int
	retention  time.Duration
	now        func() time.Time
}

// NewVerificationStore returns a store bounded to maxEntries records (<= 0 means 10000).
func NewVerificationStore(maxEntries int, retention time.Duration) *VerificationStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if retention < 0 {
		retention = 0
	}
	return &VerificationStore{
		records:    make(map[string]domain.VerificationRecord),
		maxEntries: maxEntries,
		retention:  retention,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *VerificationStore) WithClock(now func() time.Time) *VerificationStore {
	s.now = now
	return s
}

func (s *VerificationStore) Put(_ context.Context, rec *domain.VerificationRecord) error {
	if rec == nil || rec.Email == "" {
		return fmt.Errorf("verification record without email: %w", domain.ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.Email]; !exists && len(s.records) >= s.maxEntries {
		s.sweepLocked(s.now())
		if len(s.records) >= s.maxEntries {
			s.evictSoonestLocked()
		}
	}
	s.records[rec.Email] = *rec
	return nil
}

func (s *VerificationStore) Get(_ context.Context, email string) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	if s.purgeable(rec, s.now()) {
		delete(s.records, email)
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return &rec, nil
}

func (s *VerificationStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
	return nil
}

// Consume deletes the record for email only if it still holds code.
func (s *VerificationStore) Consume(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok || rec.Code != code {
		return fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	delete(s.records, email)
	return nil
}

// Len returns the number of records currently held, purgeable ones included.
func (s *VerificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep removes every record past its retention window and returns how many were dropped.
func (s *VerificationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Run sweeps every interval until ctx is done.
func (s *VerificationStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("swept expired verification records", "count", n)
			}
		}
	}
}

func (s *VerificationStore) purgeable(rec domain.VerificationRecord, now time.Time) bool {
	return now.After(rec.ExpiresAt.Add(s.retention))
}

func (s *VerificationStore) sweepLocked(now time.Time) int {
	n := 0
	for email, rec := range s.records {
		if s.purgeable(rec, now) {
			delete(s.records, email)
			n++
		}
	}
	return n
}

func (s *VerificationStore) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for email, rec := range s.records {
		if victim == "" || rec.ExpiresAt.Before(soonest) {
			victim, soonest = email, rec.ExpiresAt
		}
	}
	if victim != "" {
		delete(s.records, victim)
		slog.Warn("verification store full, evicted record", "expires_at", soonest)
	}
}
