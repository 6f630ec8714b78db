package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/skyrts/internal/protocol"
)

func TestSummarize(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	attack := []byte{0x0a, 0x06, 0x08, 0x06, 0x1a, 0x02, 0x08, 0x01}
	frames := []*protocol.Frame{
		{EpisodeID: "a", Step: 0, Timestamp: t0},
		{EpisodeID: "a", Step: 1, Action: attack, Reward: 1, Timestamp: t0.Add(time.Second)},
		{EpisodeID: "a", Step: 2, Reward: 2, Terminal: true, Timestamp: t0.Add(3 * time.Second)},
		{EpisodeID: "b", Step: 0, Timestamp: t0.Add(4 * time.Second)},
		{EpisodeID: "b", Step: 1, Action: append(attack, attack...), Reward: -1, Timestamp: t0.Add(5 * time.Second)},
	}

	got, err := Summarize(frames)
	require.NoError(t, err)
	assert.Equal(t, []EpisodeSummary{
		{ID: "a", Steps: 2, Commands: 1, Reward: 3, Terminal: true, Duration: 3 * time.Second},
		{ID: "b", Steps: 1, Commands: 2, Reward: -1, Duration: time.Second},
	}, got)
}

func TestSummarize_MalformedAction(t *testing.T) {
	frames := []*protocol.Frame{
		{EpisodeID: "a", Step: 0},
		{EpisodeID: "a", Step: 1, Action: []byte{0x0a, 0x05}},
	}
	_, err := Summarize(frames)
	assert.ErrorIs(t, err, protocol.ErrMalformed)
}

func TestSummarize_Empty(t *testing.T) {
	got, err := Summarize(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
