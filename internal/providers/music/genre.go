package music

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

type genreRule struct {
	genre    string
	keywords []string
}

// Ordered by priority; the first matching category wins. Genres are kept
// lowercase for prompt text and title-cased for display/persistence.
var genreRules = []genreRule{
	{"ambient", []string{"peaceful", "calm", "serene"}},
	{"electronic", []string{"action", "chase", "fast"}},
	{"orchestral", []string{"magical", "fantasy", "mystical"}},
	{"dark ambient", []string{"scary", "dark", "monster"}},
}

const defaultGenre = "cinematic"

func rawGenre(description string) string {
	lower := strings.ToLower(description)
	for _, rule := range genreRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.genre
			}
		}
	}
	return defaultGenre
}

// Genre derives the display form of the music genre from description keywords.
func Genre(description string) string {
	return titleCaser.String(rawGenre(description))
}

// Prompt builds the text prompt submitted to the music provider, shaped by the
// same keyword categories as the genre.
func Prompt(title, description string) string {
	genre := rawGenre(description)
	lower := strings.ToLower(description)

	switch {
	case containsAny(lower, "peaceful", "calm", "serene"):
		return fmt.Sprintf("peaceful ambient %s music, soft and calming, inspired by %s", genre, description)
	case containsAny(lower, "action", "chase", "running"):
		return fmt.Sprintf("energetic %s music with driving rhythm, inspired by %s", genre, description)
	case containsAny(lower, "magical", "fantasy", "mystical"):
		return fmt.Sprintf("mystical orchestral %s music with ethereal elements, inspired by %s", genre, description)
	case containsAny(lower, "scary", "dark", "monster"):
		return fmt.Sprintf("dark atmospheric %s music with suspenseful elements, inspired by %s", genre, description)
	default:
		return fmt.Sprintf("cinematic %s music that captures the essence of %s", genre, description)
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
