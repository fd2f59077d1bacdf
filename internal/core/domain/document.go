package domain

import (
	"maps"
	"slices"
	"time"
)

// Document is a stored text snippet with its embedding. Stores own their
// documents and hand out copies.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Vector   []float32         `json:"vector,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (d Document) Clone() Document {
	return Document{
		ID:       d.ID,
		Text:     d.Text,
		Vector:   slices.Clone(d.Vector),
		Metadata: maps.Clone(d.Metadata),
	}
}

// WithoutVector drops the embedding, used when documents leave the core.
func (d Document) WithoutVector() Document {
	out := d.Clone()
	out.Vector = nil
	return out
}

// DocumentDraft is an ingestion request before embedding.
type DocumentDraft struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Query struct {
	Text string `json:"text"`
}

type RetrievalResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

type AnswerResult struct {
	Answer         string     `json:"answer"`
	Sources        []Document `json:"sources"`
	GeneratedAt    time.Time  `json:"generated_at"`
	DroppedSources int        `json:"dropped_sources,omitempty"`
}

// Grounded reports whether the answer was produced from at least one source.
func (a *AnswerResult) Grounded() bool {
	return a != nil && len(a.Sources) > 0
}

type ChatRole string

const (
	RoleSystem ChatRole = "system"
	RoleUser   ChatRole = "user"
)

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
