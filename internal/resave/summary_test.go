package resave

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarySamplesAreCapped(t *testing.T) {
	s := &Summary{}
	for i := 0; i < 25; i++ {
		s.addSample(fmt.Sprintf("k%d", i))
	}
	require.Len(t, s.Samples, SampleLimit)
	assert.Equal(t, "k0", s.Samples[0])
	assert.Equal(t, "k9", s.Samples[9])
}

func TestSummaryReport(t *testing.T) {
	t.Run("rewrite complete", func(t *testing.T) {
		s := &Summary{Completed: true, Scanned: 12, Rewritten: 10, Skipped: 2, Failed: 1, Policy: FixedTTL(60)}
		var out bytes.Buffer
		require.NoError(t, s.WriteReport(&out))
		assert.Equal(t, "Re-save complete: scanned 12 keys, rewritten 10, skipped 2 (1 failed), policy ttl=60s.\n", out.String())
	})

	t.Run("rewrite stopped", func(t *testing.T) {
		s := &Summary{Scanned: 5, Rewritten: 5, Cursor: 1536}
		var out bytes.Buffer
		require.NoError(t, s.WriteReport(&out))
		assert.Equal(t,
			"Re-save stopped: scanned 5 keys, rewritten 5, skipped 0 (0 failed), policy keepttl.\n"+
				"Resume with --cursor 1536\n",
			out.String())
	})

	t.Run("dry run without keys", func(t *testing.T) {
		s := &Summary{DryRun: true, Completed: true}
		var out bytes.Buffer
		require.NoError(t, s.WriteReport(&out))
		assert.Equal(t, "Dry run complete: scanned 0 keys (skipped 0 get/set operations). No data was modified.\n", out.String())
	})
}
