package domain

import "time"

type MediaKind string

const (
	MediaGenerated MediaKind = "generated"
	MediaEdited    MediaKind = "edited"
)

// MediaRecord is one stored artifact owned by a session.
type MediaRecord struct {
	ID         string
	StoredPath string
	Data       []byte
	MimeType   string
	Prompt     string
	CreatedAt  time.Time
	Kind       MediaKind
}

// ImageData is a resolved image payload ready to be sent to the backend.
// Path is the file backing the payload, if any.
type ImageData struct {
	Data     []byte
	MimeType string
	Source   string
	Path     string
}
