package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/providers/music"
)

// watchMusicTask polls the provider for a deferred task until it reaches a
// terminal state or the attempt budget runs out. It is the safety net behind
// the provider callback; whichever fires first wins and the loser becomes a
// no-op through the terminal-status guard.
func (o *Orchestrator) watchMusicTask(ctx context.Context, taskID string) {
	if !o.sleep(ctx, o.poll.InitialDelay) {
		return
	}

	for attempt := 1; attempt <= o.poll.MaxAttempts; attempt++ {
		status, err := o.music.CheckStatus(ctx, taskID)
		if err != nil {
			o.logger.Warn().Err(err).Str("task_id", taskID).Int("attempt", attempt).
				Msg("orchestrator: music status check failed")
		} else {
			switch status.State {
			case music.StateSucceeded:
				o.completeMusicTask(ctx, taskID, status.Tracks)
				return
			case music.StateFailed:
				o.failMusicTask(ctx, taskID, fmt.Errorf("music generation failed: %s", status.Detail))
				return
			}
		}

		if attempt < o.poll.MaxAttempts && !o.sleep(ctx, o.poll.Interval) {
			return
		}
	}

	o.logger.Warn().Str("task_id", taskID).Int("attempts", o.poll.MaxAttempts).
		Msg("orchestrator: music poll budget exhausted")
	o.failMusicTask(ctx, taskID, errors.New("music generation timed out"))
}

// sleep waits on the injectable timer source; false means the process is
// shutting down.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-o.after(d):
		return true
	case <-ctx.Done():
		return false
	}
}
