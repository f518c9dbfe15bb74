package catalog

import (
	"strings"

	"topicpush/internal/topics"
)

// Entry is the text of a feed item used for tagging.
type Entry struct {
	Title       string
	Description string
	Categories  []string
}

// Tag returns one flag per catalog topic. A topic is set when a category
// equals its name or one of its keywords, or when a keyword occurs in the
// title or description. Matching ignores case.
func Tag(cat topics.Catalog, e Entry) map[string]bool {
	text := strings.ToLower(e.Title + " " + e.Description)
	cats := make(map[string]bool, len(e.Categories))
	for _, c := range e.Categories {
		cats[strings.ToLower(strings.TrimSpace(c))] = true
	}

	flags := make(map[string]bool, len(cat.Topics))
	for _, t := range cat.Topics {
		flags[t.Name] = matchesTopic(t, text, cats)
	}
	return flags
}

func matchesTopic(t topics.Topic, text string, cats map[string]bool) bool {
	if cats[strings.ToLower(t.Name)] {
		return true
	}
	for _, kw := range t.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if cats[kw] || strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
