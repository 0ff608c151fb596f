package story

import "strings"

type genreRule struct {
	genre    string
	keywords []string
}

// Ordered by priority; the first matching category wins.
var genreRules = []genreRule{
	{"Fantasy", []string{"magic", "wizard", "dragon"}},
	{"Science Fiction", []string{"space", "robot", "future"}},
	{"Horror", []string{"scary", "monster", "dark"}},
	{"Romance", []string{"love", "heart", "romance"}},
	{"Adventure", []string{"adventure", "journey", "quest"}},
}

// Genre derives a story genre tag from keywords in the description. Dreams
// default to Fantasy.
func Genre(description string) string {
	lower := strings.ToLower(description)
	for _, rule := range genreRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.genre
			}
		}
	}
	return "Fantasy"
}
