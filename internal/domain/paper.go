package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author represents a paper author.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	if a.Affiliation == "" {
		return a.Name
	}
	return a.Name + " (" + a.Affiliation + ")"
}

// Paper represents an imported research paper in the local library.
type Paper struct {
	ID                 uuid.UUID
	Title              string
	Authors            []Author
	Abstract           string
	DOI                string
	ArXivID            string
	Year               int
	Venue              string
	CitationCount      int
	PDFPath            string
	ThumbnailPath      string
	NarrativeAvailable bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AuthorNames returns a comma-separated list of author names.
func (p *Paper) AuthorNames() string {
	names := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// HasIdentifier returns true if the paper has a DOI or arXiv identifier.
func (p *Paper) HasIdentifier() bool {
	return strings.TrimSpace(p.DOI) != "" || strings.TrimSpace(p.ArXivID) != ""
}

// Figure represents an extracted figure of a paper.
type Figure struct {
	ID      uuid.UUID
	PaperID uuid.UUID
	Label   string
	Caption string
	Path    string
}

// Formula represents an extracted formula of a paper.
type Formula struct {
	ID      uuid.UUID
	PaperID uuid.UUID
	Label   string
	LaTeX   string
	Context string
}
