package domain

import "time"

// ContentType enumerates the artifact kinds a dream can request.
type ContentType string

const (
	ContentStory ContentType = "story"
	ContentMusic ContentType = "music"
	ContentComic ContentType = "comic"
)

// ContentStatus enumerates the per-content generation lifecycle. PENDING means
// the content type was never requested; a requested type starts at GENERATING
// and ends at COMPLETED or FAILED. Terminal states never transition again.
type ContentStatus string

const (
	StatusPending    ContentStatus = "PENDING"
	StatusGenerating ContentStatus = "GENERATING"
	StatusCompleted  ContentStatus = "COMPLETED"
	StatusFailed     ContentStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s ContentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Dream is the unit of work for one user generation request spanning up to
// three content types. Each requested type runs independently.
type Dream struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`

	GenerateStory bool `json:"generateStory"`
	GenerateMusic bool `json:"generateMusic"`
	GenerateComic bool `json:"generateComic"`

	StoryStatus ContentStatus `json:"storyStatus"`
	MusicStatus ContentStatus `json:"musicStatus"`
	ComicStatus ContentStatus `json:"comicStatus"`

	Story *Story `json:"story,omitempty"`
	Music *Music `json:"music,omitempty"`
	Comic *Comic `json:"comic,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusFor returns the status field for the given content type.
func (d *Dream) StatusFor(ct ContentType) ContentStatus {
	switch ct {
	case ContentStory:
		return d.StoryStatus
	case ContentMusic:
		return d.MusicStatus
	case ContentComic:
		return d.ComicStatus
	}
	return StatusPending
}

// Status returns the per-content status snapshot.
func (d *Dream) Status() DreamStatus {
	return DreamStatus{Story: d.StoryStatus, Music: d.MusicStatus, Comic: d.ComicStatus}
}

// Story is created once, atomically, when story generation completes.
type Story struct {
	ID        string    `json:"id"`
	DreamID   string    `json:"dreamId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Genre     string    `json:"genre"`
	WordCount int       `json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Music is the track container. It may exist with zero tracks while an
// asynchronous provider is still generating; tracks are appended as they
// arrive. TaskID is the indexed correlation key matching provider callbacks
// back to this record.
type Music struct {
	ID          string       `json:"id"`
	DreamID     string       `json:"dreamId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Genre       string       `json:"genre"`
	TaskID      string       `json:"taskId,omitempty"`
	Tracks      []MusicTrack `json:"tracks"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// MusicTrack is one generated audio track.
type MusicTrack struct {
	ID        string    `json:"id"`
	MusicID   string    `json:"musicId"`
	SunoID    string    `json:"sunoId"`
	Title     string    `json:"title"`
	AudioURL  string    `json:"audioUrl"`
	StreamURL string    `json:"streamAudioUrl"`
	ImageURL  string    `json:"imageUrl"`
	Duration  float64   `json:"duration"`
	Prompt    string    `json:"prompt"`
	ModelName string    `json:"modelName"`
	Tags      string    `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comic holds the generated strip plus its ordered panels. All panels are
// created together when generation completes and share the strip image URL.
type Comic struct {
	ID          string       `json:"id"`
	DreamID     string       `json:"dreamId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	ComicURL    string       `json:"comicUrl"`
	Panels      []ComicPanel `json:"panels"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ComicPanel is one panel of the strip.
type ComicPanel struct {
	ID          string `json:"id"`
	ComicID     string `json:"comicId"`
	PanelNumber int    `json:"panelNumber"`
	ImageURL    string `json:"imageUrl"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

// DreamStatus is the per-content status snapshot returned by status reads and
// pushed to subscribers when they join.
type DreamStatus struct {
	Story ContentStatus `json:"story"`
	Music ContentStatus `json:"music"`
	Comic ContentStatus `json:"comic"`
}
