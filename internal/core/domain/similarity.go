package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Metric selects how a store scores candidates. A store uses exactly one.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

func ParseMetric(raw string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	default:
		return "", InvalidArgument("parse metric", "unknown similarity metric %q", raw)
	}
}

// Similarity scores two vectors of identical length.
func Similarity(metric Metric, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("similarity: %w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	switch metric {
	case MetricDot:
		return Dot(a, b), nil
	case MetricCosine, "":
		return Cosine(a, b), nil
	default:
		return 0, InvalidArgument("similarity", "unknown similarity metric %q", metric)
	}
}

func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine returns 0 when either vector has zero magnitude.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v; zero vectors are copied as is.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// SortResults orders by descending score, ties broken by ascending document id.
func SortResults(results []RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
}

// TopK sorts results and keeps at most k of them.
func TopK(results []RetrievalResult, k int) []RetrievalResult {
	SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ApproxTokens estimates a token count at four runes per token.
func ApproxTokens(text string) int {
	runes := len([]rune(text))
	return (runes + 3) / 4
}

// CheckEmbeddingInput rejects blank text and text above maxTokens (when
// positive) with ErrEmbedding.
func CheckEmbeddingInput(operation, text string, maxTokens int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%s: %w: input text is blank", operation, ErrEmbedding)
	}
	if maxTokens > 0 {
		if tokens := ApproxTokens(text); tokens > maxTokens {
			return fmt.Errorf("%s: %w: input of ~%d tokens exceeds limit %d", operation, ErrEmbedding, tokens, maxTokens)
		}
	}
	return nil
}
