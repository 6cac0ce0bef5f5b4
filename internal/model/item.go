package model

// Item is one trackable entry of the checklist catalog.
// Only ID is needed by the persistence layer; the rest is for rendering.
type Item struct {
	ID         string `yaml:"id" json:"id"`
	Title      string `yaml:"title" json:"title"`
	Difficulty string `yaml:"difficulty,omitempty" json:"difficulty,omitempty"`
	URL        string `yaml:"url,omitempty" json:"url,omitempty"`
	Section    string `yaml:"-" json:"section,omitempty"`
}
