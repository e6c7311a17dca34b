package main

import (
	"sort"
	"time"

	"github.com/feral-file/lt-indexer/internal/reconcile"
)

// UserSample is the outcome of replaying one user
type UserSample struct {
	User       string
	Events     int
	Positions  int
	LoadTime   time.Duration
	ReplayTime time.Duration
	Drifted    []reconcile.Drift
	Err        error
}

type ReplayStats struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Users     int
	Failed    int
	Events    int
	Positions int
	Drifted   int

	TotalLoad   time.Duration
	TotalReplay time.Duration

	loadTimes   []time.Duration
	replayTimes []time.Duration

	// Slowest holds the users with the longest load plus replay time
	Slowest []UserSample
	// Drifts holds every position outside tolerance
	Drifts []reconcile.Drift
	Errors []UserSample
}

const slowestKept = 10

func newReplayStats(start time.Time) *ReplayStats {
	return &ReplayStats{StartTime: start}
}

func (s *ReplayStats) add(sample UserSample) {
	s.Users++
	if sample.Err != nil {
		s.Failed++
		s.Errors = append(s.Errors, sample)
		return
	}

	s.Events += sample.Events
	s.Positions += sample.Positions
	s.Drifted += len(sample.Drifted)
	s.Drifts = append(s.Drifts, sample.Drifted...)

	s.TotalLoad += sample.LoadTime
	s.TotalReplay += sample.ReplayTime
	s.loadTimes = append(s.loadTimes, sample.LoadTime)
	s.replayTimes = append(s.replayTimes, sample.ReplayTime)

	s.Slowest = append(s.Slowest, sample)
	sort.Slice(s.Slowest, func(i, j int) bool {
		return s.Slowest[i].LoadTime+s.Slowest[i].ReplayTime > s.Slowest[j].LoadTime+s.Slowest[j].ReplayTime
	})
	if len(s.Slowest) > slowestKept {
		s.Slowest = s.Slowest[:slowestKept]
	}
}

func (s *ReplayStats) finish(end time.Time) {
	s.EndTime = end
	s.Duration = end.Sub(s.StartTime)
	sort.Slice(s.loadTimes, func(i, j int) bool { return s.loadTimes[i] < s.loadTimes[j] })
	sort.Slice(s.replayTimes, func(i, j int) bool { return s.replayTimes[i] < s.replayTimes[j] })
}

// LoadPercentile returns the p-th percentile of history load times. Only valid after finish.
func (s *ReplayStats) LoadPercentile(p float64) time.Duration {
	return percentile(s.loadTimes, p)
}

// ReplayPercentile returns the p-th percentile of replay times. Only valid after finish.
func (s *ReplayStats) ReplayPercentile(p float64) time.Duration {
	return percentile(s.replayTimes, p)
}

// percentile uses nearest rank over sorted samples
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := int(p/100*float64(len(sorted))+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}
