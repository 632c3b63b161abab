// Package reportsvc keeps upload reports around for a while so that lecturers can fetch them again.
package reportsvc

import (
	"context"
	"sync"
	"time"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/ingest"
)

type memoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	reports map[string]memoryEntry
}

type memoryEntry struct {
	report    ingest.Report
	expiresAt time.Time
}

var _ ingest.ReportStore = (*memoryStore)(nil)

// NewMemoryStore returns a process-local store. A zero ttl keeps reports forever.
func NewMemoryStore(ttl time.Duration) ingest.ReportStore {
	return &memoryStore{ttl: ttl, reports: make(map[string]memoryEntry)}
}

func (s *memoryStore) Save(_ context.Context, report ingest.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := core.NowFunc()
	s.evict(now)
	entry := memoryEntry{report: report}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.reports[report.ID] = entry
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(core.NowFunc())
	entry, ok := s.reports[id]
	if !ok {
		return ingest.Report{}, ingest.ErrReportNotFound
	}
	return entry.report, nil
}

func (s *memoryStore) evict(now time.Time) {
	for id, entry := range s.reports {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.reports, id)
		}
	}
}
