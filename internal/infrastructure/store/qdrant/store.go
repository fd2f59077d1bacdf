// Package qdrant stores permit documents in a Qdrant collection over its
// REST API. Point ids are derived from document ids so upserts replace.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// pointNamespace seeds the v5 uuids used as point ids.
var pointNamespace = uuid.MustParse("6f1d3c8e-3b7a-5d2e-9a41-0c5e7f2b8d10")

type Store struct {
	baseURL    string
	collection string
	apiKey     string
	metric     domain.Metric
	httpClient *http.Client

	ensureMu   sync.Mutex
	vectorSize int
}

func New(baseURL, collection, apiKey string, metric domain.Metric, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		apiKey:     apiKey,
		metric:     metric,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PointID maps a document id onto a stable Qdrant point id.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, http.MethodGet, "/readyz", nil, nil); err != nil {
		return classify(ctx, "ping", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, doc domain.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return domain.InvalidArgument("upsert", "document id is blank")
	}
	if len(doc.Vector) == 0 {
		return domain.InvalidArgument("upsert", "document %s has no vector", doc.ID)
	}
	size, err := s.ensureCollection(ctx, len(doc.Vector))
	if err != nil {
		return err
	}
	if size != len(doc.Vector) {
		return domain.DimensionMismatch("upsert", size, len(doc.Vector))
	}

	payload := map[string]any{
		"doc_id": doc.ID,
		"text":   doc.Text,
	}
	if len(doc.Metadata) > 0 {
		payload["metadata"] = doc.Metadata
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":      PointID(doc.ID),
			"vector":  doc.Vector,
			"payload": payload,
		}},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	if err := s.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return classify(ctx, "upsert", err)
	}
	return nil
}

func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, domain.InvalidArgument("nearest", "k must be positive, got %d", k)
	}
	size, err := s.collectionSize(ctx)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if size != len(vector) {
		return nil, domain.DimensionMismatch("nearest", size, len(vector))
	}

	// Qdrant breaks score ties by point id, not document id, so fetch past k
	// until the k-th score no longer ties with the last hit returned.
	limit := k + 1
	for {
		results, err := s.search(ctx, vector, limit)
		if err != nil {
			return nil, err
		}
		domain.SortResults(results)
		if len(results) < limit || results[len(results)-1].Score != results[k-1].Score {
			return domain.TopK(results, k), nil
		}
		limit *= 2
	}
}

func (s *Store) search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievalResult, error) {
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		if isNotFound(err) {
			return []domain.RetrievalResult{}, nil
		}
		return nil, classify(ctx, "nearest", err)
	}

	out := make([]domain.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.RetrievalResult{
			Document: domain.Document{
				ID:       getStringPayload(r.Payload, "doc_id"),
				Text:     getStringPayload(r.Payload, "text"),
				Vector:   r.Vector,
				Metadata: getMetadata(r.Payload),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

// collectionSize reads the configured vector size, 0 when the collection
// does not exist yet.
func (s *Store) collectionSize(ctx context.Context) (int, error) {
	s.ensureMu.Lock()
	known := s.vectorSize
	s.ensureMu.Unlock()
	if known > 0 {
		return known, nil
	}

	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections/"+s.collection, nil, &resp); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, classify(ctx, "collection info", err)
	}
	size := resp.Result.Config.Params.Vectors.Size
	s.markCollectionEnsured(size)
	return size, nil
}

func (s *Store) ensureCollection(ctx context.Context, vectorSize int) (int, error) {
	size, err := s.collectionSize(ctx)
	if err != nil || size > 0 {
		return size, err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": distanceName(s.metric),
		},
	}
	err = s.do(ctx, http.MethodPut, "/collections/"+s.collection, body, nil)
	// 409 if a concurrent writer created it first.
	if err != nil && !isConflict(err) {
		return 0, classify(ctx, "ensure collection", err)
	}
	if isConflict(err) {
		return s.collectionSize(ctx)
	}
	s.markCollectionEnsured(vectorSize)
	return vectorSize, nil
}

func (s *Store) markCollectionEnsured(vectorSize int) {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	s.vectorSize = vectorSize
}

func distanceName(metric domain.Metric) string {
	if metric == domain.MetricDot {
		return "Dot"
	}
	return "Cosine"
}

type statusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant status: %s", e.Status)
	}
	return fmt.Sprintf("qdrant status: %s: %s", e.Status, e.Body)
}

func (s *Store) do(ctx context.Context, method, path string, payload, out any) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func isConflict(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.StatusCode == http.StatusConflict
}

func classify(ctx context.Context, operation string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.WrapCallError(ctx, domain.ErrStore, operation, err)
	}
	var se *statusError
	var netErr net.Error
	switch {
	case errors.As(err, &se):
		if se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500 {
			err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
		}
	case errors.As(err, &netErr):
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(domain.ErrStore, operation, err)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getMetadata(payload map[string]any) map[string]string {
	raw, ok := payload["metadata"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
