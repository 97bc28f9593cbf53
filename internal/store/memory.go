package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

// Memory implements harvest.RecordStore in process. Used by tests and
// by dry runs where nothing should be persisted.
type Memory struct {
	mu      sync.Mutex
	records map[harvest.RecordKey]harvest.Record
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[harvest.RecordKey]harvest.Record)}
}

// Insert implements harvest.RecordStore. The first write of a key
// wins; later duplicates are counted out, matching the backend index
// semantics.
func (s *Memory) Insert(_ context.Context, records []harvest.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, record := range records {
		key := record.Key()
		if _, dup := s.records[key]; dup {
			continue
		}
		s.records[key] = record
		inserted++
	}
	return inserted, nil
}

// Len reports the number of stored records.
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// All returns every record sorted by (stock, content type, url id).
func (s *Memory) All() []harvest.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]harvest.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StockCode != b.StockCode {
			return a.StockCode < b.StockCode
		}
		if a.ContentType != b.ContentType {
			return a.ContentType < b.ContentType
		}
		return a.URLID < b.URLID
	})
	return out
}
