package resave

import (
	"fmt"
	"time"
)

const (
	DefaultMinSleep       = 10 * time.Millisecond
	DefaultMaxSleep       = 200 * time.Millisecond
	DefaultTargetDuration = 50 * time.Millisecond
	DefaultStepUp         = 10 * time.Millisecond
	DefaultStepDown       = 5 * time.Millisecond
)

// Pacer decides how long to pause between batches
type Pacer interface {
	// Initial is the pause before any batch has been measured
	Initial() time.Duration
	// Adjust returns the next pause given the current one and how long the
	// last batch took
	Adjust(current, elapsed time.Duration) time.Duration
}

// AdditivePacer grows the pause by StepUp whenever a batch takes longer
// than Target and shrinks it by StepDown otherwise, always staying within
// [Min, Max].
type AdditivePacer struct {
	Min      time.Duration
	Max      time.Duration
	Target   time.Duration
	StepUp   time.Duration
	StepDown time.Duration
}

// DefaultPacer returns the stock 10ms..200ms pacer with a 50ms target
func DefaultPacer() AdditivePacer {
	return AdditivePacer{
		Min:      DefaultMinSleep,
		Max:      DefaultMaxSleep,
		Target:   DefaultTargetDuration,
		StepUp:   DefaultStepUp,
		StepDown: DefaultStepDown,
	}
}

// Validate checks the bounds are usable
func (p AdditivePacer) Validate() error {
	switch {
	case p.Min < 0:
		return fmt.Errorf("pacing min must not be negative, got %s", p.Min)
	case p.Max < p.Min:
		return fmt.Errorf("pacing max %s is below min %s", p.Max, p.Min)
	case p.Target <= 0:
		return fmt.Errorf("pacing target must be positive, got %s", p.Target)
	case p.StepUp <= 0 || p.StepDown <= 0:
		return fmt.Errorf("pacing steps must be positive, got up=%s down=%s", p.StepUp, p.StepDown)
	}
	return nil
}

func (p AdditivePacer) Initial() time.Duration {
	return p.Min
}

func (p AdditivePacer) Adjust(current, elapsed time.Duration) time.Duration {
	if current < p.Min {
		current = p.Min
	}
	if current > p.Max {
		current = p.Max
	}

	if elapsed > p.Target {
		return min(current+p.StepUp, p.Max)
	}
	if current > p.Min {
		return max(current-p.StepDown, p.Min)
	}
	return current
}
