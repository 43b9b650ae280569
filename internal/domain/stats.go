package domain

import "time"

// RunStats holds counters for one relay run.
type RunStats struct {
	Fetched       int
	Matched       int
	TextMessages  int
	BadgeMessages int
	PhotoMessages int
	LastSeen      int64 // watermark after the run
	Advanced      bool  // watermark changed and was persisted
	Duration      time.Duration
}
