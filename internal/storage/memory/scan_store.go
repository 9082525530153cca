// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pagelift/pagelift/internal/seo"
)

// ScanStore keeps scans and page records in process memory.
type ScanStore struct {
	mu    sync.RWMutex
	scans map[string]seo.Scan
	pages map[string][]seo.PageRecord
}

var _ seo.ScanStore = (*ScanStore)(nil)

// NewScanStore constructs an empty ScanStore.
func NewScanStore() *ScanStore {
	return &ScanStore{
		scans: make(map[string]seo.Scan),
		pages: make(map[string][]seo.PageRecord),
	}
}

// CreateScan stores a new scan.
func (s *ScanStore) CreateScan(_ context.Context, scan seo.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scans[scan.ID]; exists {
		return fmt.Errorf("scan %s already exists", scan.ID)
	}
	s.scans[scan.ID] = scan
	return nil
}

// UpdateScanStatus updates the status and counters for a scan.
func (s *ScanStore) UpdateScanStatus(
	_ context.Context,
	scanID string,
	status seo.ScanStatus,
	errText string,
	counters seo.ScanCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[scanID]
	if !ok {
		return seo.ErrNotFound
	}
	scan.Status = status
	scan.ErrorText = errText
	scan.Counters = counters
	now := time.Now().UTC()
	if status == seo.ScanStatusRunning && scan.Started == nil {
		scan.Started = pointerTime(now)
	}
	if isTerminal(status) && scan.Finished == nil {
		scan.Finished = pointerTime(now)
	}
	s.scans[scanID] = scan
	return nil
}

// RecordPage appends a page row for a scan.
func (s *ScanStore) RecordPage(_ context.Context, page seo.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.ScanID] = append(s.pages[page.ScanID], page)
	return nil
}

// GetScan fetches a scan by ID.
func (s *ScanStore) GetScan(_ context.Context, scanID string) (seo.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scan, ok := s.scans[scanID]
	if !ok {
		return seo.Scan{}, seo.ErrNotFound
	}
	return scan, nil
}

// ListScans returns scans ordered newest first.
func (s *ScanStore) ListScans(_ context.Context, limit, offset int) ([]seo.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]seo.Scan, 0, len(s.scans))
	for _, scan := range s.scans {
		all = append(all, scan)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Submitted.Equal(all[j].Submitted) {
			return all[i].Submitted.After(all[j].Submitted)
		}
		return all[i].ID < all[j].ID
	})
	if offset >= len(all) {
		return []seo.Scan{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]seo.Scan, len(all))
	copy(out, all)
	return out, nil
}

// ListPages returns all recorded pages for a scan.
func (s *ScanStore) ListPages(_ context.Context, scanID string) ([]seo.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := s.pages[scanID]
	out := make([]seo.PageRecord, len(pages))
	copy(out, pages)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status seo.ScanStatus) bool {
	switch status {
	case seo.ScanStatusSucceeded, seo.ScanStatusFailed, seo.ScanStatusCanceled:
		return true
	default:
		return false
	}
}
