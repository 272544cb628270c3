package eco

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore stores records in memory for testing or lightweight usage.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

// Add accumulates r into the record of its data center and day.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.DataCenter] == nil {
		s.data[r.DataCenter] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.DataCenter][d]
	if rec == nil {
		rec = &Record{DataCenter: r.DataCenter, Date: d}
		s.data[r.DataCenter][d] = rec
	}
	rec.RenewableWh += r.RenewableWh
	rec.BrownWh += r.BrownWh
	rec.Carbon += r.Carbon
	return nil
}

// Query returns the records of dataCenter between the days of start and end
// inclusive.
func (s *MemoryStore) Query(dataCenter string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = Day(start)
	end = Day(end)
	var res []Record
	for d, r := range s.data[dataCenter] {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

// DataCenters lists the data centers having at least one record.
func (s *MemoryStore) DataCenters() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for dc := range s.data {
		out = append(out, dc)
	}
	sort.Strings(out)
	return out, nil
}
