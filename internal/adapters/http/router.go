package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kirillkom/permit-query-assistant/internal/config"
	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
	"github.com/kirillkom/permit-query-assistant/internal/observability/logging"
	"github.com/kirillkom/permit-query-assistant/internal/observability/metrics"
)

const readinessTimeout = 3 * time.Second

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name string
	Ping func(context.Context) error
}

type Router struct {
	cfg     config.Config
	query   ports.QueryService
	ingest  ports.DocumentIngestor
	queue   ports.DocumentQueue
	checks  []ReadinessCheck
	metrics *metrics.HTTPServerMetrics
	logger  *zap.Logger
}

type RouterOption func(*Router)

func WithReadinessCheck(name string, ping func(context.Context) error) RouterOption {
	return func(rt *Router) {
		rt.checks = append(rt.checks, ReadinessCheck{Name: name, Ping: ping})
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *zap.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithQueue makes POST /v1/documents publish batches for the worker instead
// of ingesting them inline.
func WithQueue(queue ports.DocumentQueue) RouterOption {
	return func(rt *Router) {
		rt.queue = queue
	}
}

func NewRouter(
	cfg config.Config,
	query ports.QueryService,
	ingest ports.DocumentIngestor,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:    cfg,
		query:  query,
		ingest: ingest,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(rt.logger))
	r.Use(accessLogMiddleware(rt.logger))
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware(rt.cfg.ServiceName))
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)
	r.Get("/readyz", rt.readyz)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuthMiddleware(rt.cfg.APIAuthToken))
		r.Use(rateLimitMiddleware(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst))
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIQueueWaitMs)*time.Millisecond)
		})

		r.Post("/v1/query", rt.queryPermits)
		r.Put("/v1/documents/{id}", rt.putDocument)
		r.Post("/v1/documents", rt.postDocuments)
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz pings every dependency; the first failure turns the response into 503.
func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(rt.checks))
	for _, check := range rt.checks {
		if err := check.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[check.Name] = err.Error()
			logging.FromContext(r.Context()).Warn("readiness_check_failed", zap.String("check", check.Name), zap.Error(err))
			continue
		}
		checks[check.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

type queryRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

type sourceResponse struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type queryResponse struct {
	Answer         string           `json:"answer"`
	Sources        []sourceResponse `json:"sources"`
	Grounded       bool             `json:"grounded"`
	DroppedSources int              `json:"dropped_sources,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

func (rt *Router) queryPermits(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	k := rt.cfg.RAGTopK
	if req.K != nil {
		k = *req.K
	}

	start := time.Now()
	answer, err := rt.query.Answer(r.Context(), req.Query, k)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(rt.cfg.ServiceName, "query", len(answer.Sources), answer.DroppedSources, time.Since(start))
	}

	sources := make([]sourceResponse, 0, len(answer.Sources))
	for _, doc := range answer.Sources {
		sources = append(sources, sourceResponse{ID: doc.ID, Text: doc.Text, Metadata: doc.Metadata})
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:         answer.Answer,
		Sources:        sources,
		Grounded:       answer.Grounded(),
		DroppedSources: answer.DroppedSources,
		GeneratedAt:    answer.GeneratedAt,
	})
}

type documentRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type documentsRequest struct {
	Documents []domain.DocumentDraft `json:"documents"`
}

type ingestResponse struct {
	IDs    []string `json:"ids,omitempty"`
	Queued int      `json:"queued,omitempty"`
}

func (rt *Router) putDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		rt.writeError(w, r, domain.InvalidArgument("put document", "document id is required"))
		return
	}
	var req documentRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}

	ids, err := rt.ingest.Ingest(r.Context(), []domain.DocumentDraft{{ID: id, Text: req.Text, Metadata: req.Metadata}})
	rt.recordIngest("put", len(ids), err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{IDs: ids})
}

func (rt *Router) postDocuments(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if len(req.Documents) == 0 {
		rt.writeError(w, r, domain.InvalidArgument("post documents", "documents must not be empty"))
		return
	}

	if rt.queue != nil {
		for i, draft := range req.Documents {
			if strings.TrimSpace(draft.Text) == "" {
				rt.writeError(w, r, domain.InvalidArgument("post documents", "document %d has blank text", i))
				return
			}
		}
		err := rt.queue.PublishDocuments(r.Context(), req.Documents)
		rt.recordIngest("queue", len(req.Documents), err)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ingestResponse{Queued: len(req.Documents)})
		return
	}

	ids, err := rt.ingest.Ingest(r.Context(), req.Documents)
	rt.recordIngest("batch", len(ids), err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{IDs: ids})
}

func (rt *Router) recordIngest(endpoint string, documents int, err error) {
	if rt.metrics != nil {
		rt.metrics.RecordIngest(rt.cfg.ServiceName, endpoint, documents, err)
	}
}

func (rt *Router) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := r.Body
	if rt.cfg.APIMaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.InvalidArgument("decode request", "body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return domain.InvalidArgument("decode request", "request body is empty")
		default:
			return domain.WrapError(domain.ErrInvalidArgument, "decode request", err)
		}
	}
	return nil
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request_failed", zap.Int("status", status), zap.Error(err))
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Kind:      errorKind(err),
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
