package resave

import (
	"fmt"
	"io"
	"time"
)

// SampleLimit caps the number of keys a dry run keeps for inspection
const SampleLimit = 10

// Summary describes a finished or stopped run
type Summary struct {
	RunID       string
	DryRun      bool
	Policy      RewritePolicy
	StartCursor Cursor
	// Cursor is where the run stopped: 0 after a full cycle, otherwise the
	// cursor to pass back in to resume
	Cursor     Cursor
	Completed  bool
	Iterations int

	Scanned   int
	Rewritten int
	Skipped   int
	// Failed counts skipped keys whose read or write returned an error
	Failed int

	// Samples holds the first keys seen by a dry run, in scan order
	Samples []string

	LastSleep time.Duration
	Duration  time.Duration
}

// Balanced reports whether every scanned key was either rewritten or skipped
func (s *Summary) Balanced() bool {
	return s.Scanned == s.Rewritten+s.Skipped
}

func (s *Summary) addSample(key string) {
	if len(s.Samples) < SampleLimit {
		s.Samples = append(s.Samples, key)
	}
}

// WriteReport prints the human-readable outcome of the run
func (s *Summary) WriteReport(w io.Writer) error {
	var err error
	write := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	state := "complete"
	if !s.Completed {
		state = "stopped"
	}

	if s.DryRun {
		write("Dry run %s: scanned %d keys (skipped %d get/set operations). No data was modified.\n",
			state, s.Scanned, s.Skipped)
		if len(s.Samples) > 0 {
			write("Sample keys (first %d):\n", len(s.Samples))
			for _, key := range s.Samples {
				write("- %s\n", key)
			}
		}
	} else {
		write("Re-save %s: scanned %d keys, rewritten %d, skipped %d (%d failed), policy %s.\n",
			state, s.Scanned, s.Rewritten, s.Skipped, s.Failed, s.Policy)
	}

	if !s.Completed {
		write("Resume with --cursor %d\n", s.Cursor)
	}
	return err
}
