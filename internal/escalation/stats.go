package escalation

import (
	"sync"
	"time"
)

// Stats accumulates escalation counters. Safe for concurrent use.
type Stats struct {
	mu           sync.Mutex
	calls        int
	successes    int
	parseErrors  int
	retries      int
	dropped      int
	fallbacks    int
	totalLatency time.Duration
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Calls          int           `json:"calls" yaml:"calls"`
	Successes      int           `json:"successes" yaml:"successes"`
	ParseErrors    int           `json:"parse_errors" yaml:"parse_errors"`
	Retries        int           `json:"retries" yaml:"retries"`
	DroppedEntries int           `json:"dropped_entries" yaml:"dropped_entries"`
	Fallbacks      int           `json:"fallbacks" yaml:"fallbacks"`
	MeanLatency    time.Duration `json:"mean_latency" yaml:"mean_latency"`
	SuccessRate    float64       `json:"success_rate" yaml:"success_rate"`
}

func (s *Stats) recordCall(latency time.Duration, ok, parseErr bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.totalLatency += latency

	if ok {
		s.successes++
	}

	if parseErr {
		s.parseErrors++
	}
}

func (s *Stats) recordRetry() {
	s.mu.Lock()
	s.retries++
	s.mu.Unlock()
}

func (s *Stats) recordDropped(n int) {
	s.mu.Lock()
	s.dropped += n
	s.mu.Unlock()
}

func (s *Stats) recordFallback(n int) {
	s.mu.Lock()
	s.fallbacks += n
	s.mu.Unlock()
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Calls:          s.calls,
		Successes:      s.successes,
		ParseErrors:    s.parseErrors,
		Retries:        s.retries,
		DroppedEntries: s.dropped,
		Fallbacks:      s.fallbacks,
	}

	if s.calls > 0 {
		snap.MeanLatency = s.totalLatency / time.Duration(s.calls)
		snap.SuccessRate = float64(s.successes) / float64(s.calls)
	}

	return snap
}
