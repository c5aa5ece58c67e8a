package scraper

import (
	"time"
)

// State is the per-channel scrape state.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateRateLimited State = "rate_limited"
	StateCompleted   State = "completed"
	StateStopped     State = "stopped"
	StateFailed      State = "failed"
)

// EventType tags progress events.
type EventType string

const (
	// EventProgress carries updated per-channel counters after a page commit.
	EventProgress EventType = "progress"
	// EventRateLimit carries the remaining flood-wait countdown.
	EventRateLimit EventType = "rate_limit"
	// EventChannelDone carries the final per-channel outcome.
	EventChannelDone EventType = "channel_done"
)

// Event is one progress notification. Events are advisory: a consumer that
// falls behind loses events rather than stalling the scrape.
type Event struct {
	Type      EventType
	Channel   string // the identifier the caller asked for
	State     State
	Messages  int
	Links     int
	Remaining time.Duration // only for EventRateLimit
	Err       error         // only for EventChannelDone failures
}

// Outcome is the terminal result for one channel in a batch.
type Outcome struct {
	Identifier string
	ChannelID  int64
	State      State
	Messages   int
	Links      int
	Err        error
}

// Summary is the batch result: one outcome per requested channel plus
// aggregate counters.
type Summary struct {
	Outcomes []Outcome
	Messages int
	Links    int
}

// Failed reports whether any channel in the batch failed.
func (s *Summary) Failed() bool {
	for _, o := range s.Outcomes {
		if o.State == StateFailed {
			return true
		}
	}
	return false
}
