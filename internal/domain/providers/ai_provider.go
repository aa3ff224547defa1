package providers

import "context"

// EmbeddingProvider maps text to a fixed-length numeric vector. Calls are
// fallible and are never retried or cached by the ingestion pipeline.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// TextProvider generates free text from a prompt.
type TextProvider interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}
