package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"server/internal/domain"
	"server/internal/notify"
	"server/internal/providers/music"
)

// Callback discriminators sent by the music provider. Intermediate types
// (text/first audio snippets) are informational only.
const (
	CallbackComplete = "complete"
	CallbackError    = "error"
)

// MusicCallback is the parsed inbound completion signal from the music
// provider.
type MusicCallback struct {
	Code         int
	Msg          string
	TaskID       string
	CallbackType string
	Tracks       []music.TrackPayload
}

// HandleMusicCallback drives the completion bridge from an inbound provider
// callback. Correlation is by exact task-id match only; a miss is logged and
// dropped so the provider still sees success and stops retrying.
func (o *Orchestrator) HandleMusicCallback(ctx context.Context, cb MusicCallback) {
	o.logger.Info().Str("task_id", cb.TaskID).Str("type", cb.CallbackType).Int("code", cb.Code).
		Msg("orchestrator: received music callback")

	switch {
	case cb.Code == 200 && cb.CallbackType == CallbackComplete && len(cb.Tracks) > 0:
		tracks := make([]music.Track, 0, len(cb.Tracks))
		for _, p := range cb.Tracks {
			tracks = append(tracks, p.ToTrack())
		}
		o.completeMusicTask(ctx, cb.TaskID, tracks)
	case cb.Code != 200 || cb.CallbackType == CallbackError:
		msg := cb.Msg
		if msg == "" {
			msg = "music generation failed"
		}
		o.failMusicTask(ctx, cb.TaskID, errors.New(msg))
	default:
		o.logger.Debug().Str("task_id", cb.TaskID).Str("type", cb.CallbackType).
			Msg("orchestrator: intermediate music callback ignored")
	}
}

// completeMusicTask persists the delivered tracks and flips the music status.
// Safe against duplicate deliveries and deleted dreams: both degrade to
// logged no-ops.
func (o *Orchestrator) completeMusicTask(ctx context.Context, taskID string, tracks []music.Track) {
	record, err := o.repo.FindMusicByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn().Str("task_id", taskID).Msg("orchestrator: no music record for task, dropping result")
			return
		}
		o.logger.Error().Err(err).Str("task_id", taskID).Msg("orchestrator: music lookup failed")
		return
	}
	if len(record.Tracks) > 0 {
		o.logger.Info().Str("task_id", taskID).Msg("orchestrator: duplicate completion for task, ignoring")
		return
	}

	persisted := make([]domain.MusicTrack, 0, len(tracks))
	for _, t := range tracks {
		persisted = append(persisted, trackFromProvider(record.ID, t))
	}
	if err := o.repo.AddMusicTracks(ctx, record.ID, persisted); err != nil {
		o.logger.Error().Err(err).Str("task_id", taskID).Msg("orchestrator: persist callback tracks failed")
		o.failContent(ctx, record.DreamID, domain.ContentMusic, fmt.Errorf("persist tracks: %w", err))
		return
	}
	record.Tracks = persisted

	if o.completeContent(ctx, record.DreamID, domain.ContentMusic) {
		o.hub.Publish(record.DreamID, notify.EventMusicCompleted, map[string]any{
			"status": domain.StatusCompleted,
			"music":  record,
		})
		o.logger.Info().Str("dream_id", record.DreamID).Int("tracks", len(persisted)).
			Msg("orchestrator: music completed via bridge")
	}
}

// failMusicTask marks the awaiting music record's dream FAILED. Unknown task
// ids are correlation misses: logged and dropped.
func (o *Orchestrator) failMusicTask(ctx context.Context, taskID string, cause error) {
	record, err := o.repo.FindMusicByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn().Str("task_id", taskID).Msg("orchestrator: no music record for failed task")
			return
		}
		o.logger.Error().Err(err).Str("task_id", taskID).Msg("orchestrator: music lookup failed")
		return
	}
	o.logger.Error().Err(cause).Str("dream_id", record.DreamID).Str("task_id", taskID).
		Msg("orchestrator: music task failed")
	o.failContent(ctx, record.DreamID, domain.ContentMusic, cause)
}
