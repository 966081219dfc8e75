package catalog

import (
	"fmt"
	"strings"
)

// Category groups models by the kind of output they produce.
type Category string

const (
	CategoryText  Category = "text"
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
	CategoryAudio Category = "audio"
)

// Categories in listing order.
var Categories = []Category{CategoryText, CategoryImage, CategoryVideo, CategoryAudio}

// Operation is a host-requested action.
type Operation string

const (
	OpGenerateText  Operation = "generateText"
	OpGenerateImage Operation = "generateImage"
	OpGenerateVideo Operation = "generateVideo"
	OpGenerateAudio Operation = "generateAudio"
	OpStatus        Operation = "status"
)

// Valid reports whether o is one of the known operations.
func (o Operation) Valid() bool {
	switch o {
	case OpGenerateText, OpGenerateImage, OpGenerateVideo, OpGenerateAudio, OpStatus:
		return true
	}
	return false
}

// Category returns the model category an operation lists. Status and
// unknown operations map to text with ok=false.
func (o Operation) Category() (Category, bool) {
	switch o {
	case OpGenerateText:
		return CategoryText, true
	case OpGenerateImage:
		return CategoryImage, true
	case OpGenerateVideo:
		return CategoryVideo, true
	case OpGenerateAudio:
		return CategoryAudio, true
	}
	return CategoryText, false
}

// Rule names, also used to pick default input templates.
const (
	RuleText      = "text"
	RuleImage     = "image"
	RuleImageEdit = "image-edit"
	RuleVideo     = "video"
	RuleAudio     = "audio"
)

// Rule maps model ids containing any keyword to a category.
type Rule struct {
	Name     string
	Keywords []string
	Category Category
	Label    string
}

func (r Rule) matches(modelID string) bool {
	for _, k := range r.Keywords {
		if strings.Contains(modelID, k) {
			return true
		}
	}
	return false
}

// Rules are evaluated in order and the first match wins, so "qwen3" models
// are text even though "qwen-image" is an image keyword.
var Rules = []Rule{
	{Name: RuleText, Keywords: []string{"granite", "qwen3", "deep-cogito", "infinitetalk"}, Category: CategoryText, Label: "Text"},
	{Name: RuleImage, Keywords: []string{"flux", "qwen-image", "seedream"}, Category: CategoryImage, Label: "Image"},
	{Name: RuleImageEdit, Keywords: []string{"nano-banana"}, Category: CategoryImage, Label: "Image Edit"},
	{Name: RuleVideo, Keywords: []string{"wan", "seedance", "kling", "sora"}, Category: CategoryVideo, Label: "Video"},
	{Name: RuleAudio, Keywords: []string{"whisper", "minimax"}, Category: CategoryAudio, Label: "Audio"},
}

// defaultRule catches every id no rule matches.
var defaultRule = Rule{Name: RuleText, Category: CategoryText, Label: "Text"}

// Match returns the first rule matching modelID. Unmatched ids get the
// text default and ok=false.
func Match(modelID string) (Rule, bool) {
	for _, r := range Rules {
		if r.matches(modelID) {
			return r, true
		}
	}
	return defaultRule, false
}

// Entry is a categorized model ready for listing.
type Entry struct {
	ModelID     string   `json:"modelId"`
	DisplayName string   `json:"displayName"`
	Category    Category `json:"category"`
	Label       string   `json:"label"`
}

// Option is the human facing label, e.g. "Flux Dev (Image)".
func (e Entry) Option() string {
	return fmt.Sprintf("%s (%s)", e.DisplayName, e.Label)
}

// NewEntry categorizes a single model id.
func NewEntry(modelID string) Entry {
	r, _ := Match(modelID)
	return Entry{
		ModelID:     modelID,
		DisplayName: DisplayName(modelID),
		Category:    r.Category,
		Label:       r.Label,
	}
}

// Categorize partitions ids into the four categories, keeping input order
// within each. Every id lands in exactly one category.
func Categorize(ids []string) map[Category][]Entry {
	out := make(map[Category][]Entry, len(Categories))
	for _, c := range Categories {
		out[c] = []Entry{}
	}
	for _, id := range ids {
		e := NewEntry(id)
		out[e.Category] = append(out[e.Category], e)
	}
	return out
}

// Select returns the entries an operation lists: its category, the union
// of all categories for status, and text for anything else.
func Select(categorized map[Category][]Entry, op Operation) []Entry {
	if op == OpStatus {
		var all []Entry
		for _, c := range Categories {
			all = append(all, categorized[c]...)
		}
		return all
	}
	c, _ := op.Category()
	return append([]Entry(nil), categorized[c]...)
}
