package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/steppetalk/voice-terminal/internal/display"
)

// Buttons reports the current level of each input button
type Buttons interface {
	PushToTalk() bool
	Swap() bool
	Cycle() bool
}

// loopState is the input bookkeeping of the poll loop
type loopState struct {
	pttDown   bool
	pttStart  time.Time
	lastSwap  time.Time
	lastCycle time.Time
}

// Run polls the buttons until ctx is done and returns the final session.
// Runs execute on the polling goroutine, so input is not sampled while
// one is in progress.
func (o *Orchestrator) Run(ctx context.Context, buttons Buttons, s Session) Session {
	s = o.ShowIdle(s)
	o.logger.Info().Str("pair", s.Pair.String()).Msg("Ready")

	var st loopState
	for {
		select {
		case <-ctx.Done():
			return s
		default:
		}

		s = o.poll(ctx, buttons, s, &st)
		o.sleep(o.config.PollInterval)
	}
}

// poll samples the buttons once and acts on them
func (o *Orchestrator) poll(ctx context.Context, buttons Buttons, s Session, st *loopState) Session {
	now := o.now()

	if buttons.Swap() && now.Sub(st.lastSwap) > o.config.Debounce {
		st.lastSwap = now
		s.Pair = s.Pair.Swap()
		s = o.buttonFeedback(s, "Swap")
	}

	if buttons.Cycle() && now.Sub(st.lastCycle) > o.config.Debounce {
		st.lastCycle = now
		s.Pair = s.Pair.CycleDestination()
		s = o.buttonFeedback(s, "Lang")
	}

	pressed := buttons.PushToTalk()
	if pressed && !st.pttDown {
		st.pttDown = true
		st.pttStart = now
	}
	if !pressed && st.pttDown {
		st.pttDown = false
		held := now.Sub(st.pttStart)

		var err error
		s, err = o.RunHold(ctx, s, held)
		if err != nil && !errors.Is(err, ErrBusy) {
			o.logger.Debug().Err(err).Msg("Hold ended with error")
		}
	}

	return s
}

func (o *Orchestrator) buttonFeedback(s Session, label string) Session {
	o.logger.Info().Str("pair", s.Pair.String()).Msg(label)
	s = o.show(s, display.Idle, label, s.Pair.String())
	o.sleep(o.config.ButtonDwell)
	return o.ShowIdle(s)
}
