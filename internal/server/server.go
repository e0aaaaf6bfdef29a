package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-clip-tokenizer/internal/config"
	"github.com/example/go-clip-tokenizer/internal/tokenizer"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Encoder is the tokenizer surface served over HTTP.
type Encoder interface {
	tokenizer.Tokenizer
	EncodeBatch(ctx context.Context, texts []string, workers int) ([][]int, error)
	CacheStats() tokenizer.CacheStats
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	maxBatch       int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   64 * 1024,
		maxBatch:       256,
		workers:        4,
		requestTimeout: 10 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed size of one text in bytes.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithMaxBatch sets the maximum number of texts in one batch request.
func WithMaxBatch(n int) Option {
	return func(o *options) { o.maxBatch = n }
}

// WithWorkers sets the maximum number of requests encoding at once.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	enc  Encoder
	opts options
	sem  chan struct{} // semaphore for worker pool
	log  *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /stats,
// POST /encode and POST /count.
func NewHandler(enc Encoder, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		enc:  enc,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/encode", h.handleEncode)
	mux.HandleFunc("/count", h.handleCount)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.enc.CacheStats())
}

type encodeRequest struct {
	Text  *string  `json:"text"`
	Texts []string `json:"texts"`
}

type encodeResult struct {
	IDs   []int `json:"ids"`
	Count int   `json:"count"`
}

type batchResponse struct {
	Results []encodeResult `json:"results"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r, true)
	if !ok {
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()

	if req.Text != nil {
		ids, err := h.enc.Encode(*req.Text)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			h.fail(w, r, "encode", len(*req.Text), start, err)
			return
		}
		h.log.InfoContext(r.Context(), "encode complete",
			slog.Int("text_len", len(*req.Text)),
			slog.Int("tokens", len(ids)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		writeJSON(w, http.StatusOK, encodeResult{IDs: ids, Count: len(ids)})
		return
	}

	total := 0
	for _, s := range req.Texts {
		total += len(s)
	}

	batch, err := h.enc.EncodeBatch(ctx, req.Texts, 0)
	if err != nil {
		h.fail(w, r, "encode batch", total, start, err)
		return
	}

	resp := batchResponse{Results: make([]encodeResult, len(batch))}
	tokens := 0
	for i, ids := range batch {
		resp.Results[i] = encodeResult{IDs: ids, Count: len(ids)}
		tokens += len(ids)
	}

	h.log.InfoContext(r.Context(), "encode batch complete",
		slog.Int("texts", len(req.Texts)),
		slog.Int("text_len", total),
		slog.Int("tokens", tokens),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleCount(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r, false)
	if !ok {
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	n, err := h.enc.Count(*req.Text)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		h.fail(w, r, "count", len(*req.Text), start, err)
		return
	}

	h.log.InfoContext(r.Context(), "count complete",
		slog.Int("text_len", len(*req.Text)),
		slog.Int("tokens", n),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// decodeRequest parses and validates a POST body, writing the error
// response itself when the request is rejected.
func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request, allowBatch bool) (encodeRequest, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return encodeRequest{}, false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return encodeRequest{}, false
	}

	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return encodeRequest{}, false
	}

	switch {
	case req.Text != nil && req.Texts != nil:
		writeError(w, http.StatusBadRequest, "text and texts are mutually exclusive")
		return encodeRequest{}, false
	case req.Texts != nil && !allowBatch:
		writeError(w, http.StatusBadRequest, "texts is not supported on this endpoint")
		return encodeRequest{}, false
	case req.Text == nil && req.Texts == nil:
		writeError(w, http.StatusBadRequest, "text field is required")
		return encodeRequest{}, false
	}

	if req.Text != nil && len(*req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return encodeRequest{}, false
	}

	if h.opts.maxBatch > 0 && len(req.Texts) > h.opts.maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch exceeds maximum of %d texts", h.opts.maxBatch))
		return encodeRequest{}, false
	}
	for i, s := range req.Texts {
		if len(s) > h.opts.maxTextBytes {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("texts[%d] exceeds maximum size of %d bytes", i, h.opts.maxTextBytes))
			return encodeRequest{}, false
		}
	}

	return req, true
}

// acquire takes a worker slot, honouring cancellation while waiting.
func (h *handler) acquire(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if h.sem == nil {
		return func() {}, true
	}
	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, true
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		return nil, false
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, textLen int, start time.Time, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.Int("text_len", textLen),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.String("error", err.Error()),
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.log.WarnContext(r.Context(), "request timed out", attrs...)
		writeError(w, http.StatusGatewayTimeout, op+" timed out")
		return
	}

	h.log.ErrorContext(r.Context(), op+" failed", attrs...)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	enc             Encoder
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config, enc Encoder) *Server {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		cfg:             cfg,
		enc:             enc,
		logger:          slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Handler builds the request handler from the server configuration.
func (s *Server) Handler() http.Handler {
	handlerOpts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithMaxBatch(s.cfg.Server.MaxBatch),
		WithLogger(s.logger),
	}
	if s.cfg.Server.MaxTextBytes > 0 {
		handlerOpts = append(handlerOpts, WithMaxTextBytes(s.cfg.Server.MaxTextBytes))
	}
	if s.cfg.Server.RequestTimeout > 0 {
		handlerOpts = append(handlerOpts, WithRequestTimeout(s.cfg.Server.RequestTimeout))
	}

	return NewHandler(s.enc, handlerOpts...)
}

func (s *Server) Start(ctx context.Context) error {
	if s.enc == nil {
		return errors.New("server requires a tokenizer")
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
