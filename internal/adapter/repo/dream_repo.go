package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// DreamRepositoryPG implements domain.DreamRepository on PostgreSQL via the
// shared SQL runner.
type DreamRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewDreamRepository creates a dream repository backed by PostgreSQL.
func NewDreamRepository(sql infra.SQLExecutor) *DreamRepositoryPG {
	return &DreamRepositoryPG{sql: sql}
}

// CreateDream inserts the dream row with its initial per-content statuses.
func (r *DreamRepositoryPG) CreateDream(ctx context.Context, dream *domain.Dream) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertDream,
		dream.ID,
		dream.UserID,
		dream.Title,
		dream.Description,
		dream.IsPublic,
		dream.GenerateStory,
		dream.GenerateMusic,
		dream.GenerateComic,
		dream.StoryStatus,
		dream.MusicStatus,
		dream.ComicStatus,
	)
	if err != nil {
		return fmt.Errorf("insert dream: %w", err)
	}
	return nil
}

// GetDream fetches a dream and hydrates whatever artifacts exist.
func (r *DreamRepositoryPG) GetDream(ctx context.Context, id string) (*domain.Dream, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectDream, id)
	dream, err := scanDream(row)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, dream); err != nil {
		return nil, err
	}
	return dream, nil
}

// ListDreams returns the user's dreams, newest first, artifacts included.
func (r *DreamRepositoryPG) ListDreams(ctx context.Context, userID string) ([]domain.Dream, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectDreamsByUser, userID)
	if err != nil {
		return nil, err
	}
	return r.collectDreams(ctx, rows)
}

// ListPublicDreams returns the most recent public dreams, artifacts included.
func (r *DreamRepositoryPG) ListPublicDreams(ctx context.Context, limit int) ([]domain.Dream, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectPublicDreams, limit)
	if err != nil {
		return nil, err
	}
	return r.collectDreams(ctx, rows)
}

// DeleteDream removes the dream and cascades to its artifacts. Only the owner
// may delete. In-flight generation is not cancelled; late completions for the
// deleted dream become correlation misses.
func (r *DreamRepositoryPG) DeleteDream(ctx context.Context, id, userID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteDream, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetStatus reads the per-content status snapshot.
func (r *DreamRepositoryPG) GetStatus(ctx context.Context, id string) (*domain.DreamStatus, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectDreamStatus, id)
	var st domain.DreamStatus
	if err := row.Scan(&st.Story, &st.Music, &st.Comic); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

// UpdateContentStatus flips one content status. The update is conditional on
// the current value being non-terminal, so COMPLETED/FAILED are never
// overwritten and statuses cannot move backward.
func (r *DreamRepositoryPG) UpdateContentStatus(ctx context.Context, dreamID string, ct domain.ContentType, status domain.ContentStatus) (bool, error) {
	var query string
	switch ct {
	case domain.ContentStory:
		query = sqlinline.QUpdateStoryStatus
	case domain.ContentMusic:
		query = sqlinline.QUpdateMusicStatus
	case domain.ContentComic:
		query = sqlinline.QUpdateComicStatus
	default:
		return false, fmt.Errorf("unknown content type %q", ct)
	}
	tag, err := r.sql.Exec(ctx, query, dreamID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateStory persists the completed story artifact.
func (r *DreamRepositoryPG) CreateStory(ctx context.Context, story *domain.Story) error {
	if story.ID == "" {
		story.ID = uuid.NewString()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertStory,
		story.ID, story.DreamID, story.Title, story.Content, story.Genre, story.WordCount)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

// CreateMusic persists the music container. TaskID is stored in the indexed
// correlation column when the provider completes asynchronously.
func (r *DreamRepositoryPG) CreateMusic(ctx context.Context, music *domain.Music) error {
	if music.ID == "" {
		music.ID = uuid.NewString()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertMusic,
		music.ID, music.DreamID, music.Title, music.Description, music.Genre, music.TaskID)
	if err != nil {
		return fmt.Errorf("insert music: %w", err)
	}
	return nil
}

// AddMusicTracks appends tracks to an existing music container.
func (r *DreamRepositoryPG) AddMusicTracks(ctx context.Context, musicID string, tracks []domain.MusicTrack) error {
	for i := range tracks {
		track := &tracks[i]
		if track.ID == "" {
			track.ID = uuid.NewString()
		}
		_, err := r.sql.Exec(ctx, sqlinline.QInsertMusicTrack,
			track.ID, musicID, track.SunoID, track.Title,
			track.AudioURL, track.StreamURL, track.ImageURL,
			track.Duration, track.Prompt, track.ModelName, track.Tags)
		if err != nil {
			return fmt.Errorf("insert music track: %w", err)
		}
	}
	return nil
}

// FindMusicByTaskID resolves a provider task id to its music container by
// exact correlation-key match, tracks included.
func (r *DreamRepositoryPG) FindMusicByTaskID(ctx context.Context, taskID string) (*domain.Music, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectMusicByTaskID, taskID)
	music, err := scanMusic(row)
	if err != nil {
		return nil, err
	}
	tracks, err := r.musicTracks(ctx, music.ID)
	if err != nil {
		return nil, err
	}
	music.Tracks = tracks
	return music, nil
}

// CreateComic persists the comic and all its panels together.
func (r *DreamRepositoryPG) CreateComic(ctx context.Context, comic *domain.Comic) error {
	if comic.ID == "" {
		comic.ID = uuid.NewString()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertComic,
		comic.ID, comic.DreamID, comic.Title, comic.Description, comic.ComicURL)
	if err != nil {
		return fmt.Errorf("insert comic: %w", err)
	}
	for i := range comic.Panels {
		panel := &comic.Panels[i]
		if panel.ID == "" {
			panel.ID = uuid.NewString()
		}
		panel.ComicID = comic.ID
		_, err := r.sql.Exec(ctx, sqlinline.QInsertComicPanel,
			panel.ID, comic.ID, panel.PanelNumber, panel.ImageURL, panel.Text, panel.Description)
		if err != nil {
			return fmt.Errorf("insert comic panel %d: %w", panel.PanelNumber, err)
		}
	}
	return nil
}

func (r *DreamRepositoryPG) collectDreams(ctx context.Context, rows pgx.Rows) ([]domain.Dream, error) {
	defer rows.Close()
	var dreams []domain.Dream
	for rows.Next() {
		dream, err := scanDream(rows)
		if err != nil {
			return nil, err
		}
		dreams = append(dreams, *dream)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range dreams {
		if err := r.hydrate(ctx, &dreams[i]); err != nil {
			return nil, err
		}
	}
	return dreams, nil
}

func (r *DreamRepositoryPG) hydrate(ctx context.Context, dream *domain.Dream) error {
	story, err := r.storyByDream(ctx, dream.ID)
	if err != nil {
		return err
	}
	dream.Story = story

	music, err := r.musicByDream(ctx, dream.ID)
	if err != nil {
		return err
	}
	if music != nil {
		tracks, err := r.musicTracks(ctx, music.ID)
		if err != nil {
			return err
		}
		music.Tracks = tracks
	}
	dream.Music = music

	comic, err := r.comicByDream(ctx, dream.ID)
	if err != nil {
		return err
	}
	dream.Comic = comic
	return nil
}

func (r *DreamRepositoryPG) storyByDream(ctx context.Context, dreamID string) (*domain.Story, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectStoryByDream, dreamID)
	var story domain.Story
	err := row.Scan(&story.ID, &story.DreamID, &story.Title, &story.Content,
		&story.Genre, &story.WordCount, &story.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &story, nil
}

func (r *DreamRepositoryPG) musicByDream(ctx context.Context, dreamID string) (*domain.Music, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectMusicByDream, dreamID)
	music, err := scanMusic(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return music, nil
}

func (r *DreamRepositoryPG) comicByDream(ctx context.Context, dreamID string) (*domain.Comic, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectComicByDream, dreamID)
	var comic domain.Comic
	err := row.Scan(&comic.ID, &comic.DreamID, &comic.Title, &comic.Description,
		&comic.ComicURL, &comic.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectComicPanels, comic.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var panel domain.ComicPanel
		if err := rows.Scan(&panel.ID, &panel.ComicID, &panel.PanelNumber,
			&panel.ImageURL, &panel.Text, &panel.Description); err != nil {
			return nil, err
		}
		comic.Panels = append(comic.Panels, panel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &comic, nil
}

func (r *DreamRepositoryPG) musicTracks(ctx context.Context, musicID string) ([]domain.MusicTrack, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectMusicTracks, musicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tracks []domain.MusicTrack
	for rows.Next() {
		var track domain.MusicTrack
		if err := rows.Scan(&track.ID, &track.MusicID, &track.SunoID, &track.Title,
			&track.AudioURL, &track.StreamURL, &track.ImageURL,
			&track.Duration, &track.Prompt, &track.ModelName, &track.Tags,
			&track.CreatedAt); err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

func scanDream(row pgx.Row) (*domain.Dream, error) {
	var dream domain.Dream
	err := row.Scan(
		&dream.ID,
		&dream.UserID,
		&dream.Title,
		&dream.Description,
		&dream.IsPublic,
		&dream.GenerateStory,
		&dream.GenerateMusic,
		&dream.GenerateComic,
		&dream.StoryStatus,
		&dream.MusicStatus,
		&dream.ComicStatus,
		&dream.CreatedAt,
		&dream.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &dream, nil
}

func scanMusic(row pgx.Row) (*domain.Music, error) {
	var music domain.Music
	err := row.Scan(&music.ID, &music.DreamID, &music.Title, &music.Description,
		&music.Genre, &music.TaskID, &music.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &music, nil
}

var _ domain.DreamRepository = (*DreamRepositoryPG)(nil)
