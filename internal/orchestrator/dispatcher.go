// Package orchestrator coordinates multi-provider dream generation: it
// persists the unit of work, fans out one supervised task per requested
// content type, bridges asynchronous provider completions back to the record
// (callback and polling), and notifies live subscribers on every transition.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/notify"
	"server/internal/providers/comic"
	"server/internal/providers/music"
	"server/internal/providers/story"
)

// StoryGenerator produces a completed story synchronously.
type StoryGenerator interface {
	Generate(ctx context.Context, title, description string) (*story.Result, error)
}

// MusicGenerator submits music jobs (immediate or deferred) and answers
// status polls for deferred ones.
type MusicGenerator interface {
	Generate(ctx context.Context, title, description string) (*music.Result, error)
	CheckStatus(ctx context.Context, taskID string) (*music.StatusResult, error)
}

// ComicGenerator produces a completed comic strip synchronously.
type ComicGenerator interface {
	Generate(ctx context.Context, title, description string) (*comic.Result, error)
}

// PollConfig bounds the music poller. The defaults mirror the provider's
// processing envelope: first check after 30s, every 30s, 30 attempts.
type PollConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

// DefaultPollConfig returns the production polling bounds.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialDelay: 30 * time.Second,
		Interval:     30 * time.Second,
		MaxAttempts:  30,
	}
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Repo   domain.DreamRepository
	Hub    *notify.Hub
	Story  StoryGenerator
	Music  MusicGenerator
	Comic  ComicGenerator
	Logger zerolog.Logger
	Poll   PollConfig
	// After is the poll timer source; tests inject a fake. Defaults to
	// time.After.
	After func(d time.Duration) <-chan time.Time
}

// Orchestrator is the job dispatcher plus completion bridge.
type Orchestrator struct {
	repo   domain.DreamRepository
	hub    *notify.Hub
	story  StoryGenerator
	music  MusicGenerator
	comic  ComicGenerator
	logger zerolog.Logger
	poll   PollConfig
	after  func(d time.Duration) <-chan time.Time

	// baseCtx scopes generation tasks to the process, not the triggering
	// HTTP request: the response returns long before generation finishes.
	baseCtx context.Context
	wg      sync.WaitGroup
}

// New constructs an orchestrator whose background tasks live until ctx is
// cancelled.
func New(ctx context.Context, opts Options) *Orchestrator {
	poll := opts.Poll
	if poll.MaxAttempts == 0 {
		poll = DefaultPollConfig()
	}
	after := opts.After
	if after == nil {
		after = time.After
	}
	return &Orchestrator{
		repo:    opts.Repo,
		hub:     opts.Hub,
		story:   opts.Story,
		music:   opts.Music,
		comic:   opts.Comic,
		logger:  opts.Logger,
		poll:    poll,
		after:   after,
		baseCtx: ctx,
	}
}

// CreateRequest is the validated input for a new dream.
type CreateRequest struct {
	Title         string
	Description   string
	GenerateStory bool
	GenerateMusic bool
	GenerateComic bool
}

// CreateDream persists the dream with its initial statuses and fans out one
// generation task per requested content type, then returns immediately. Task
// failures surface only through status transitions and subscriber events,
// never through this call.
func (o *Orchestrator) CreateDream(ctx context.Context, userID string, req CreateRequest) (*domain.Dream, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", domain.ErrValidation)
	}
	if !req.GenerateStory && !req.GenerateMusic && !req.GenerateComic {
		return nil, fmt.Errorf("%w: select at least one generation option", domain.ErrValidation)
	}

	dream := &domain.Dream{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         title,
		Description:   description,
		IsPublic:      true,
		GenerateStory: req.GenerateStory,
		GenerateMusic: req.GenerateMusic,
		GenerateComic: req.GenerateComic,
		StoryStatus:   initialStatus(req.GenerateStory),
		MusicStatus:   initialStatus(req.GenerateMusic),
		ComicStatus:   initialStatus(req.GenerateComic),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := o.repo.CreateDream(ctx, dream); err != nil {
		return nil, fmt.Errorf("create dream: %w", err)
	}

	if req.GenerateStory {
		o.spawn(dream.ID, domain.ContentStory, func(ctx context.Context) {
			o.runStory(ctx, dream.ID, title, description)
		})
	}
	if req.GenerateMusic {
		o.spawn(dream.ID, domain.ContentMusic, func(ctx context.Context) {
			o.runMusic(ctx, dream.ID, title, description)
		})
	}
	if req.GenerateComic {
		o.spawn(dream.ID, domain.ContentComic, func(ctx context.Context) {
			o.runComic(ctx, dream.ID, title, description)
		})
	}
	return dream, nil
}

func initialStatus(requested bool) domain.ContentStatus {
	if requested {
		return domain.StatusGenerating
	}
	return domain.StatusPending
}

// spawn runs one generation task in a tracked goroutine. A panic inside the
// task is converted to a FAILED status instead of killing the work silently.
func (o *Orchestrator) spawn(dreamID string, ct domain.ContentType, run func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error().Str("dream_id", dreamID).Str("content", string(ct)).
					Interface("panic", r).Msg("orchestrator: generation task panicked")
				o.failContent(o.baseCtx, dreamID, ct, fmt.Errorf("generation task panicked: %v", r))
			}
		}()
		run(o.baseCtx)
	}()
}

// Wait blocks until all in-flight generation tasks have finished. Used by
// shutdown and tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) runStory(ctx context.Context, dreamID, title, description string) {
	o.logger.Info().Str("dream_id", dreamID).Msg("orchestrator: story generation started")

	result, err := o.story.Generate(ctx, title, description)
	if err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Msg("orchestrator: story generation failed")
		o.failContent(ctx, dreamID, domain.ContentStory, err)
		return
	}

	record := &domain.Story{
		ID:        uuid.NewString(),
		DreamID:   dreamID,
		Title:     title + " - Story",
		Content:   result.Content,
		Genre:     result.Genre,
		WordCount: result.WordCount,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.repo.CreateStory(ctx, record); err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Msg("orchestrator: persist story failed")
		o.failContent(ctx, dreamID, domain.ContentStory, err)
		return
	}

	if o.completeContent(ctx, dreamID, domain.ContentStory) {
		o.hub.Publish(dreamID, notify.EventStoryCompleted, map[string]any{
			"status": domain.StatusCompleted,
			"story":  record,
		})
	}
	o.logger.Info().Str("dream_id", dreamID).Msg("orchestrator: story generation completed")
}

func (o *Orchestrator) runComic(ctx context.Context, dreamID, title, description string) {
	o.logger.Info().Str("dream_id", dreamID).Msg("orchestrator: comic generation started")

	result, err := o.comic.Generate(ctx, title, description)
	if err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Msg("orchestrator: comic generation failed")
		o.failContent(ctx, dreamID, domain.ContentComic, err)
		return
	}

	record := &domain.Comic{
		ID:          uuid.NewString(),
		DreamID:     dreamID,
		Title:       result.Title,
		Description: result.Description,
		ComicURL:    result.ComicURL,
		CreatedAt:   time.Now().UTC(),
	}
	for _, panel := range result.Panels {
		record.Panels = append(record.Panels, domain.ComicPanel{
			ID:          uuid.NewString(),
			ComicID:     record.ID,
			PanelNumber: panel.PanelNumber,
			// Panels share the strip image; panel-level crops are not
			// produced by the comic service.
			ImageURL:    result.ComicURL,
			Text:        panel.Text,
			Description: panel.Description,
		})
	}
	if err := o.repo.CreateComic(ctx, record); err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Msg("orchestrator: persist comic failed")
		o.failContent(ctx, dreamID, domain.ContentComic, err)
		return
	}

	if o.completeContent(ctx, dreamID, domain.ContentComic) {
		o.hub.Publish(dreamID, notify.EventComicCompleted, map[string]any{
			"status": domain.StatusCompleted,
			"comic":  record,
		})
	}
	o.logger.Info().Str("dream_id", dreamID).Msg("orchestrator: comic generation completed")
}

func (o *Orchestrator) runMusic(ctx context.Context, dreamID, title, description string) {
	o.logger.Info().Str("dream_id", dreamID).Msg("orchestrator: music generation started")

	result, err := o.music.Generate(ctx, title, description)
	if err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Msg("orchestrator: music generation failed")
		o.failContent(ctx, dreamID, domain.ContentMusic, err)
		return
	}

	record := &domain.Music{
		ID:          uuid.NewString(),
		DreamID:     dreamID,
		Title:       result.Title,
		Description: result.Description,
		Genre:       result.Genre,
		TaskID:      result.TaskID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.repo.CreateMusic(ctx, record); err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Msg("orchestrator: persist music failed")
		o.failContent(ctx, dreamID, domain.ContentMusic, err)
		return
	}

	if result.Mode == music.ModeDeferred {
		// Completion arrives out-of-band: the provider callback normally
		// wins, the poller is the safety net.
		o.logger.Info().Str("dream_id", dreamID).Str("task_id", result.TaskID).
			Msg("orchestrator: music generation in progress, awaiting callback")
		o.spawn(dreamID, domain.ContentMusic, func(ctx context.Context) {
			o.watchMusicTask(ctx, result.TaskID)
		})
		return
	}

	var tracks []domain.MusicTrack
	for _, t := range result.Tracks {
		tracks = append(tracks, trackFromProvider(record.ID, t))
	}
	if len(tracks) > 0 {
		if err := o.repo.AddMusicTracks(ctx, record.ID, tracks); err != nil {
			o.logger.Error().Err(err).Str("dream_id", dreamID).Msg("orchestrator: persist music tracks failed")
			o.failContent(ctx, dreamID, domain.ContentMusic, err)
			return
		}
		record.Tracks = tracks
	}

	if o.completeContent(ctx, dreamID, domain.ContentMusic) {
		o.hub.Publish(dreamID, notify.EventMusicCompleted, map[string]any{
			"status": domain.StatusCompleted,
			"music":  record,
		})
	}
	o.logger.Info().Str("dream_id", dreamID).Bool("simulated", result.Simulated).
		Msg("orchestrator: music generation completed")
}

// completeContent flips the content status to COMPLETED. Returns false when
// the status was already terminal, in which case no event must be published.
func (o *Orchestrator) completeContent(ctx context.Context, dreamID string, ct domain.ContentType) bool {
	updated, err := o.repo.UpdateContentStatus(ctx, dreamID, ct, domain.StatusCompleted)
	if err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Str("content", string(ct)).
			Msg("orchestrator: status update failed")
		return false
	}
	if !updated {
		o.logger.Warn().Str("dream_id", dreamID).Str("content", string(ct)).
			Msg("orchestrator: status already terminal, skipping completion")
	}
	return updated
}

// failContent flips the content status to FAILED and notifies subscribers.
// A dream that was deleted mid-flight, or already terminal, is left alone.
func (o *Orchestrator) failContent(ctx context.Context, dreamID string, ct domain.ContentType, cause error) {
	updated, err := o.repo.UpdateContentStatus(ctx, dreamID, ct, domain.StatusFailed)
	if err != nil {
		o.logger.Error().Err(err).Str("dream_id", dreamID).Str("content", string(ct)).
			Msg("orchestrator: failure status update failed")
		return
	}
	if !updated {
		return
	}
	o.hub.Publish(dreamID, failureEvent(ct), map[string]any{
		"status": domain.StatusFailed,
		"error":  cause.Error(),
	})
}

func failureEvent(ct domain.ContentType) string {
	switch ct {
	case domain.ContentStory:
		return notify.EventStoryFailed
	case domain.ContentMusic:
		return notify.EventMusicFailed
	default:
		return notify.EventComicFailed
	}
}

func trackFromProvider(musicID string, t music.Track) domain.MusicTrack {
	return domain.MusicTrack{
		ID:        uuid.NewString(),
		MusicID:   musicID,
		SunoID:    t.SunoID,
		Title:     t.Title,
		AudioURL:  t.AudioURL,
		StreamURL: t.StreamURL,
		ImageURL:  t.ImageURL,
		Duration:  t.Duration,
		Prompt:    t.Prompt,
		ModelName: t.ModelName,
		Tags:      t.Tags,
	}
}
