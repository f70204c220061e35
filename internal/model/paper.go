package model

import "time"

// Paper is the canonical record produced by PaperFetcher and consumed by
// every downstream stage. No stage mutates a Paper in place; derived lists
// reference papers by id.
type Paper struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors,omitempty"`
	PrimaryCategory string    `json:"primary_category,omitempty"`
	Categories      []string  `json:"categories,omitempty"`
	Published       time.Time `json:"published"`
	Link            string    `json:"link,omitempty"`

	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	EmbeddingDim   int       `json:"embedding_dim,omitempty"`
}

// SeenKey returns the "source:id" key used by the SeenSet.
func (p Paper) SeenKey() string {
	return p.Source + ":" + p.ID
}

// BM25Text and EmbeddingText return the concatenation the BM25 and
// embedding retrievers index over:
// title + "\n" + abstract for BM25, title + ". " + abstract for embeddings.
// Both stages call the variant matching their own joiner rather than
// sharing one, since the spec fixes the separator per retriever.
func (p Paper) BM25Text() string {
	return p.Title + "\n" + p.Abstract
}

func (p Paper) EmbeddingText() string {
	return p.Title + ". " + p.Abstract
}
