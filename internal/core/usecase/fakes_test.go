package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// tableEmbedder returns fixed vectors per text.
type tableEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int32
}

func (f *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

type storeFake struct {
	results  []domain.RetrievalResult
	err      error
	k        int
	upserted []domain.Document
}

func (f *storeFake) Nearest(_ context.Context, _ []float32, k int) ([]domain.RetrievalResult, error) {
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *storeFake) Upsert(_ context.Context, doc domain.Document) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, doc)
	return nil
}

func (f *storeFake) Ping(context.Context) error { return nil }

// chatFake records every request and replies with a fixed answer.
type chatFake struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests [][]domain.ChatMessage
}

func (f *chatFake) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *chatFake) lastUserPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	msgs := f.requests[len(f.requests)-1]
	return msgs[len(msgs)-1].Content
}

func (f *chatFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
