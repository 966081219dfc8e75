package catalog

// fallbackIDs is the built-in catalog used when discovery is unavailable.
var fallbackIDs = map[Category][]string{
	CategoryText:  {"granite-4-0-h-small", "qwen3-32b-awq"},
	CategoryImage: {"black-forest-labs-flux-1-dev", "black-forest-labs-flux-1-schnell", "qwen-image-t2i"},
	CategoryVideo: {"seedance-1-0-pro", "wan-2-5"},
	CategoryAudio: {"whisper-v3-large"},
}

// FallbackModels returns the static catalog for op. It is never empty.
func FallbackModels(op Operation) []Entry {
	categorized := make(map[Category][]Entry, len(fallbackIDs))
	for c, ids := range fallbackIDs {
		for _, id := range ids {
			categorized[c] = append(categorized[c], Entry{
				ModelID:     id,
				DisplayName: DisplayName(id),
				Category:    c,
				Label:       labelOf(c),
			})
		}
	}
	return Select(categorized, op)
}

func labelOf(c Category) string {
	for _, r := range Rules {
		if r.Category == c && r.Name != RuleImageEdit {
			return r.Label
		}
	}
	return defaultRule.Label
}
