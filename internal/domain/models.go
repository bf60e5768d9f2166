package domain

// ModelOption describes one GigaAM checkpoint the library can load by name.
type ModelOption struct {
	ID          ModelVariant `json:"id"`
	Name        string       `json:"name"`
	Checkpoint  string       `json:"checkpoint"`
	SizeLabel   string       `json:"sizeLabel,omitempty"`
	Description string       `json:"description,omitempty"`
	Cached      bool         `json:"cached"`
	LocalPath   string       `json:"localPath,omitempty"`
}
