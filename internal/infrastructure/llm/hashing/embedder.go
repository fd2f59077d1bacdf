// Package hashing provides a deterministic offline embedder based on the
// feature hashing trick. It needs no model and suits demos and tests.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

const DefaultDimension = 256

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

type Embedder struct {
	dimension int
	maxTokens int
	stopwords map[string]struct{}
}

func NewEmbedder(dimension, maxTokens int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension: dimension,
		maxTokens: maxTokens,
		stopwords: defaultStopwords(),
	}
}

func (e *Embedder) Dimension() int { return e.dimension }

// Embed hashes every token into a signed bucket and L2-normalizes the result.
// Text without any indexable token embeds to the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrCancelled, "hashing embed", err)
	}
	if err := domain.CheckEmbeddingInput("hashing embed", text, e.maxTokens); err != nil {
		return nil, err
	}

	acc := make([]float64, e.dimension)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimension)
	if norm == 0 {
		return out, nil
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "in", "is",
		"it", "of", "on", "or", "that", "the", "there", "this", "to", "was", "what",
		"which", "with",
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
