package coordinator

import (
	"sort"
	"time"
)

// FeedStats counts fetch outcomes for one upstream endpoint.
type FeedStats struct {
	Feed         string        `json:"feed"`
	Successes    uint64        `json:"successes"`
	Failures     uint64        `json:"failures"`
	LastAttempt  time.Time     `json:"last_attempt"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	LastOutcome  string        `json:"last_outcome"`
	LastDuration time.Duration `json:"last_duration_ns"`
}

// Failing reports whether the most recent attempt failed.
func (s FeedStats) Failing() bool {
	return s.LastOutcome != "" && s.LastOutcome != outcomeOK
}

// Stats returns a copy of the per-endpoint statistics sorted by name.
func (c *Coordinator) Stats() []FeedStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	out := make([]FeedStats, 0, len(c.stats))
	for _, s := range c.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Feed < out[j].Feed })
	return out
}

func (c *Coordinator) recordStats(name, outcome string, err error, at time.Time, d time.Duration) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	s, ok := c.stats[name]
	if !ok {
		s = &FeedStats{Feed: name}
		c.stats[name] = s
	}
	s.LastAttempt = at
	s.LastDuration = d
	s.LastOutcome = outcome
	if err != nil {
		s.Failures++
		s.LastError = err.Error()
		return
	}
	s.Successes++
	s.LastSuccess = at
	s.LastError = ""
}
