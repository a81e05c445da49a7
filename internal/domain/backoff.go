package domain

import "time"

const (
	// MaxBackoffMinutes caps the per-source backoff at 24 hours.
	MaxBackoffMinutes = 1440

	// DefaultStaleAfter is the freshness window after which an alert that has
	// not been rewritten is deactivated.
	DefaultStaleAfter = 72 * time.Hour
)

// BackoffFor returns how long a source is suspended after errorCount
// consecutive failures: min(2^errorCount, 1440) minutes.
func BackoffFor(errorCount int) time.Duration {
	if errorCount <= 0 {
		return 0
	}
	// 2^11 already exceeds the cap; avoid shifting into overflow.
	if errorCount > 10 {
		return MaxBackoffMinutes * time.Minute
	}
	minutes := 1 << errorCount
	if minutes > MaxBackoffMinutes {
		minutes = MaxBackoffMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// RecordFailure returns the watermark after one more failed attempt at now.
// LastTimestamp is left untouched.
func (w SourceWatermark) RecordFailure(now time.Time) SourceWatermark {
	w.ErrorCount++
	until := now.Add(BackoffFor(w.ErrorCount))
	w.BackoffUntil = &until
	return w
}

// RecordSuccess returns the watermark after a successful attempt at now.
func (w SourceWatermark) RecordSuccess(now time.Time) SourceWatermark {
	w.LastTimestamp = &now
	w.ErrorCount = 0
	w.BackoffUntil = nil
	return w
}
