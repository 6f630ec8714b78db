package recording

import (
	"time"

	"github.com/cartridge/skyrts/internal/protocol"
)

// EpisodeSummary aggregates the frames of one recorded episode.
type EpisodeSummary struct {
	ID       string
	Steps    uint32
	Commands int
	Reward   float64
	Terminal bool
	Duration time.Duration
}

// Summarize groups frames by episode in recording order. Step 0 frames are
// resets and carry no action or reward.
func Summarize(frames []*protocol.Frame) ([]EpisodeSummary, error) {
	var (
		out   []EpisodeSummary
		start time.Time
	)
	for _, f := range frames {
		if len(out) == 0 || out[len(out)-1].ID != f.EpisodeID {
			out = append(out, EpisodeSummary{ID: f.EpisodeID})
			start = f.Timestamp
		}
		ep := &out[len(out)-1]
		ep.Duration = f.Timestamp.Sub(start)
		ep.Terminal = f.Terminal
		if f.Step == 0 {
			continue
		}
		msg, err := protocol.UnmarshalActionList(f.Action)
		if err != nil {
			return out, err
		}
		ep.Steps = max(ep.Steps, f.Step)
		ep.Commands += msg.Len()
		ep.Reward += f.Reward
	}
	return out, nil
}
