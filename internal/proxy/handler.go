package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vnmchuo/adstream-gateway/internal/adgen"
	"github.com/vnmchuo/adstream-gateway/internal/provider"
	"github.com/vnmchuo/adstream-gateway/internal/usage"
	"github.com/vnmchuo/adstream-gateway/pkg/ratelimit"
)

const (
	maxBodyBytes     = 1 << 20
	usageSaveTimeout = 5 * time.Second
)

// ProviderFunc builds the provider for one request.
type ProviderFunc func() (provider.Provider, error)

type Options struct {
	Service       string
	Version       string
	Provider      string // configured vendor name, reported by the health check
	StreamTimeout time.Duration

	// Ads writes ad creative; nil serves sample creative.
	Ads *adgen.Generator
}

type Handler struct {
	resolve ProviderFunc
	usage   usage.Store
	limiter *ratelimit.Limiter
	tracer  trace.Tracer
	logger  *slog.Logger
	opts    Options
	started time.Time

	// background usage writes
	wg sync.WaitGroup
}

func NewHandler(resolve ProviderFunc, store usage.Store, limiter *ratelimit.Limiter, tracer trace.Tracer, logger *slog.Logger, opts Options) *Handler {
	if store == nil {
		store = usage.NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 2 * time.Minute
	}
	if opts.Ads == nil {
		opts.Ads = adgen.New(nil, "", logger)
	}
	return &Handler{
		resolve: resolve,
		usage:   store,
		limiter: limiter,
		tracer:  tracer,
		logger:  logger,
		opts:    opts,
		started: time.Now(),
	}
}

// Wait blocks until pending usage writes have finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

type chatRequest struct {
	Messages []provider.Message
	Model    string
}

// HandleChat relays one streamed completion as Server-Sent Events.
//
// Errors found before the first byte is written become a JSON body with a
// 4xx/5xx status. Once the event stream is open the status is committed, so
// a failure is reported as a single {"error"} event and [DONE] is not sent.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestIDFrom(ctx)
	logger := h.logger.With(slog.String("request_id", requestID))

	if !h.allow(w, r) {
		return
	}

	req, err := decodeChatRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.resolve()
	if err != nil {
		logger.Error("provider resolution failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	model := req.Model
	if model == "" {
		model = provider.DefaultModel
	}

	ctx, span := h.tracer.Start(ctx, "proxy.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.String("provider", string(p.Name())),
		attribute.String("model", model),
		attribute.Int("messages", len(req.Messages)),
	)

	ctx, cancel := context.WithTimeout(ctx, h.opts.StreamTimeout)
	defer cancel()

	stream, err := p.StreamChat(ctx, req.Messages, req.Model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream request failed")
		logger.Error("upstream request failed", slog.String("provider", string(p.Name())), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer stream.Close()

	// A client disconnect closes the stream, which unblocks a pending Next.
	stop := context.AfterFunc(r.Context(), func() {
		_ = stream.Close()
	})
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := newEventWriter(w, flusher)
	var completion strings.Builder
	fragments := 0
	outcome := "completed"

	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			if werr := events.done(); werr != nil {
				outcome = "client_closed"
			}
			break
		}
		if err != nil {
			if r.Context().Err() != nil {
				outcome = "client_closed"
				break
			}
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream failed")
			logger.Error("stream failed", slog.Int("fragments", fragments), slog.Any("error", err))
			_ = events.error(err.Error())
			break
		}

		fragments++
		completion.WriteString(frag)
		if err := events.content(frag); err != nil {
			outcome = "client_closed"
			break
		}
	}

	if outcome == "client_closed" {
		logger.Info("client disconnected from stream", slog.Int("fragments", fragments))
	}
	span.SetAttributes(
		attribute.Int("fragments", fragments),
		attribute.String("outcome", outcome),
	)

	h.meter(requestID, p, model, req.Messages, completion.String())
}

// meter prices the exchange and saves it in the background.
func (h *Handler) meter(requestID string, p provider.Provider, model string, messages []provider.Message, completion string) {
	counter, ok := p.(provider.TokenCounter)
	if !ok {
		return
	}
	promptTokens := 0
	for _, m := range messages {
		promptTokens += counter.CountTokens(m.Content).Prompt
	}
	completionTokens := counter.CountTokens(completion).Prompt

	h.save(usage.NewRecord(requestID, string(p.Name()), model, promptTokens, completionTokens))
}

func (h *Handler) save(rec *usage.Record) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), usageSaveTimeout)
		defer cancel()
		if err := h.usage.Save(ctx, rec); err != nil {
			h.logger.Warn("failed to save usage record",
				slog.String("request_id", rec.RequestID),
				slog.Any("error", err),
			)
		}
	}()
}

func decodeChatRequest(body io.Reader) (*chatRequest, error) {
	var raw struct {
		Messages json.RawMessage `json:"messages"`
		Model    json.RawMessage `json:"model"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errors.New("invalid request body")
	}

	msgs := bytes.TrimSpace(raw.Messages)
	if len(msgs) == 0 || msgs[0] != '[' {
		return nil, errors.New("messages array is required")
	}

	req := &chatRequest{}
	if err := json.Unmarshal(msgs, &req.Messages); err != nil {
		return nil, errors.New("messages must be objects with string role and content")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages must not be empty")
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("messages[%d]: invalid role %q", i, m.Role)
		}
	}

	if model := bytes.TrimSpace(raw.Model); len(model) > 0 && !bytes.Equal(model, []byte("null")) {
		if err := json.Unmarshal(model, &req.Model); err != nil {
			return nil, errors.New("model must be a string")
		}
	}

	return req, nil
}

// HandleRecordUsage prices a client-reported token count.
func (h *Handler) HandleRecordUsage(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	var body struct {
		Provider         string          `json:"provider"`
		Model            string          `json:"model"`
		PromptTokens     json.RawMessage `json:"promptTokens"`
		CompletionTokens json.RawMessage `json:"completionTokens"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Provider == "" || body.Model == "" {
		writeError(w, http.StatusBadRequest, "provider and model are required")
		return
	}

	promptTokens, okPrompt := tokenCount(body.PromptTokens)
	completionTokens, okCompletion := tokenCount(body.CompletionTokens)
	if !okPrompt || !okCompletion {
		writeError(w, http.StatusBadRequest, "promptTokens and completionTokens must be non-negative integers")
		return
	}

	_, span := h.tracer.Start(r.Context(), "proxy.usage")
	defer span.End()

	rec := usage.NewRecord(requestIDFrom(r.Context()), body.Provider, body.Model, promptTokens, completionTokens)
	span.SetAttributes(
		attribute.String("provider", rec.Provider),
		attribute.String("model", rec.Model),
		attribute.Float64("estimated_cost", rec.EstimatedCost),
	)
	h.save(rec)

	writeJSON(w, http.StatusOK, rec)
}

// tokenCount accepts a JSON number holding a non-negative integer.
func tokenCount(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// HandleUsage reports persisted usage for a time window.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	now := time.Now()
	q := r.URL.Query()
	filter := usage.Filter{
		From:     now.AddDate(0, 0, -30), // Default: last 30 days
		To:       now,
		Provider: q.Get("provider"),
	}

	if s := q.Get("from"); s != "" {
		from, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' date format (use RFC3339)")
			return
		}
		filter.From = from
	}

	if s := q.Get("to"); s != "" {
		to, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' date format (use RFC3339)")
			return
		}
		filter.To = to
	}

	if filter.To.Before(filter.From) {
		writeError(w, http.StatusBadRequest, "'to' must not be before 'from'")
		return
	}

	records, err := h.usage.List(ctx, filter)
	if err != nil {
		h.logger.Error("failed to list usage", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	totalCost, err := h.usage.TotalCost(ctx, filter)
	if err != nil {
		h.logger.Error("failed to total usage", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if records == nil {
		records = []*usage.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalRequests": len(records),
		"totalCost":     totalCost,
		"records":       records,
		"from":          filter.From,
		"to":            filter.To,
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"service":       h.opts.Service,
		"version":       h.opts.Version,
		"provider":      h.opts.Provider,
		"usageStore":    usage.StoreState(h.usage),
		"timestamp":     time.Now().UTC(),
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
	})
}

// allow applies the per-client rate limit. A limiter failure lets the
// request through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request) bool {
	ok, err := h.limiter.Allow(r.Context(), clientKey(r))
	if err != nil {
		h.logger.Warn("rate limiter unavailable", slog.Any("error", err))
		return true
	}
	if !ok {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":       "rate limit exceeded",
			"retry_after": "60s",
		})
		return false
	}
	return true
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func requestIDFrom(ctx context.Context) string {
	if id := chimiddleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
