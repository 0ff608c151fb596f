package domain

import "context"

// DreamRepository persists dreams and their generated artifacts.
//
// Status updates are conditional: a terminal status (COMPLETED/FAILED) is
// never overwritten, which makes duplicate provider callbacks and late poll
// results harmless no-ops.
type DreamRepository interface {
	CreateDream(ctx context.Context, dream *Dream) error
	GetDream(ctx context.Context, id string) (*Dream, error)
	ListDreams(ctx context.Context, userID string) ([]Dream, error)
	ListPublicDreams(ctx context.Context, limit int) ([]Dream, error)
	DeleteDream(ctx context.Context, id, userID string) error

	GetStatus(ctx context.Context, id string) (*DreamStatus, error)
	// UpdateContentStatus flips one content type's status. It reports false
	// when the row was not updated because the current status is terminal
	// (or the dream no longer exists).
	UpdateContentStatus(ctx context.Context, dreamID string, ct ContentType, status ContentStatus) (bool, error)

	CreateStory(ctx context.Context, story *Story) error
	CreateMusic(ctx context.Context, music *Music) error
	AddMusicTracks(ctx context.Context, musicID string, tracks []MusicTrack) error
	// FindMusicByTaskID resolves the provider correlation key to the awaiting
	// music container. Exact match only; returns ErrNotFound on a miss.
	FindMusicByTaskID(ctx context.Context, taskID string) (*Music, error)
	CreateComic(ctx context.Context, comic *Comic) error
}
