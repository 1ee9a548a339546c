package collector

import (
	"context"
	"sync"

	"FountainProtocol/internal/model"
)

// StaticSource returns fixed counts, optionally per date. Used for dry runs and tests.
type StaticSource struct {
	mu      sync.Mutex
	Default model.Counts
	ByDate  map[string]model.Counts
	Err     error
	Calls   int
}

func NewStaticSource(holders, donors int64) *StaticSource {
	return &StaticSource{Default: model.Counts{ActiveHolders: holders, NewDonors: donors}}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) FetchCounts(_ context.Context, date string) (model.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return model.Counts{}, s.Err
	}
	if c, ok := s.ByDate[date]; ok {
		return c, nil
	}
	return s.Default, nil
}

// Set replaces the counts returned for date.
func (s *StaticSource) Set(date string, holders, donors int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ByDate == nil {
		s.ByDate = make(map[string]model.Counts)
	}
	s.ByDate[date] = model.Counts{ActiveHolders: holders, NewDonors: donors}
}
