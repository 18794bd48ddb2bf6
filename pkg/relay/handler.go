package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/secrets"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"
	"mercator-hq/relay/pkg/upstream"
)

// Completer sends one chat completion request upstream.
type Completer interface {
	Complete(ctx context.Context, credential string, req *upstream.Request) (*upstream.Response, error)
	Endpoint() string
}

// HeaderSetter writes the cross-origin header set for a request.
type HeaderSetter interface {
	SetHeaders(h http.Header, r *http.Request)
}

// Recorder receives one audit record per call. It must not block.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record)
}

// Options configures a Handler. Upstream and Credentials are required.
type Options struct {
	Upstream    Completer
	Credentials secrets.CredentialSource

	// Fixed upstream parameters. The caller can never change them.
	Model            string
	MaxTokens        int
	Temperature      float64
	FrequencyPenalty float64

	// MaxBodyBytes bounds the inbound body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// ForwardStatus relays the upstream status code instead of 200.
	ForwardStatus bool

	// Headers writes the CORS header set. Nil uses the default set.
	Headers HeaderSetter

	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer
	Recorder Recorder
}

// OptionsFromConfig fills the fixed parameters from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:            cfg.Upstream.Model,
		MaxTokens:        cfg.Upstream.MaxTokens,
		Temperature:      cfg.Upstream.Temperature,
		FrequencyPenalty: cfg.Upstream.FrequencyPenalty,
		MaxBodyBytes:     cfg.Proxy.MaxBodyBytes,
		ForwardStatus:    cfg.Upstream.ForwardStatus,
	}
}

// Handler relays chat completion requests to the upstream with the
// credential attached and answers CORS preflight checks.
//
// OPTIONS requests get 200 with an empty body. Every other method is
// relayed. Any failure is answered with 500 and ErrorBody; the cause is
// only visible in logs, metrics, traces and the audit trail.
type Handler struct {
	upstream    Completer
	credentials secrets.CredentialSource
	params      upstream.Request
	maxBody     int64
	forward     bool
	headers     HeaderSetter
	logger      *slog.Logger
	metrics     *metrics.Collector
	tracer      *tracing.Tracer
	recorder    Recorder
}

// NewHandler creates a relay handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Upstream == nil {
		return nil, errors.New("relay: upstream is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("relay: credential source is required")
	}

	model := opts.Model
	if model == "" {
		model = config.DefaultUpstreamModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.DefaultUpstreamMaxTokens
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	headers := opts.Headers
	if headers == nil {
		headers = defaultHeaders{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}

	return &Handler{
		upstream:    opts.Upstream,
		credentials: opts.Credentials,
		params: upstream.Request{
			Model:            model,
			MaxTokens:        maxTokens,
			Temperature:      opts.Temperature,
			FrequencyPenalty: opts.FrequencyPenalty,
		},
		maxBody:  maxBody,
		forward:  opts.ForwardStatus,
		headers:  headers,
		logger:   logger,
		metrics:  opts.Metrics,
		tracer:   tracer,
		recorder: opts.Recorder,
	}, nil
}

// call collects what happened during one relay call.
type call struct {
	parsed   *ParsedChatRequest
	response *upstream.Response
	status   int
	latency  time.Duration
	err      error
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "relay "+r.Method, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	h.headers.SetHeaders(w.Header(), r)
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)

		tracing.SetOutcome(span, audit.OutcomePreflight, 0)
		tracing.SetOK(span)
		h.metrics.RecordRelay(audit.OutcomePreflight, "", time.Since(start), 0, 0)
		h.record(ctx, r, start, &call{})
		return
	}

	c := h.relay(ctx, span, r)
	if c.err != nil {
		h.fail(ctx, span, w, r, start, c)
		return
	}

	status := http.StatusOK
	if h.forward && c.response.StatusCode > 0 {
		status = c.response.StatusCode
	}
	w.WriteHeader(status)
	if _, err := w.Write(c.response.Body); err != nil {
		h.logger.DebugContext(ctx, "failed to write response", "error", err)
	}

	size := len(c.response.Body)
	tracing.SetOutcome(span, audit.OutcomeSuccess, size)
	tracing.SetOK(span)
	h.metrics.RecordRelay(audit.OutcomeSuccess, "", time.Since(start), c.parsed.Size, size)
	h.record(ctx, r, start, c)

	level := slog.LevelDebug
	if c.response.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "relayed upstream response",
		"upstream_status", c.response.StatusCode,
		"status", status,
		"messages", len(c.parsed.Messages),
		"upstream_latency_ms", c.latency.Milliseconds(),
	)
}

func (h *Handler) relay(ctx context.Context, span trace.Span, r *http.Request) *call {
	c := &call{}

	parsed, err := ParseChatRequest(r.Body, h.maxBody)
	if err != nil {
		c.err = err
		return c
	}
	c.parsed = parsed
	tracing.SetRequestAttributes(span, logging.GetRequestID(ctx), len(parsed.Messages), parsed.Size)

	credential, err := h.credentials.Credential(ctx)
	if err == nil && strings.TrimSpace(credential) == "" {
		err = errors.New("credential is empty")
	}
	if err != nil {
		c.err = &RelayError{Kind: CredentialUnavailable, Cause: err}
		return c
	}

	req := h.params
	req.Messages = parsed.Messages

	sent := time.Now()
	resp, err := h.upstream.Complete(ctx, credential, &req)
	c.latency = time.Since(sent)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		c.latency = resp.Latency
	} else {
		var invalid *upstream.InvalidResponseError
		if errors.As(err, &invalid) {
			status = invalid.StatusCode
		}
	}
	c.status = status
	h.metrics.RecordUpstream(status, c.latency)
	tracing.SetUpstreamAttributes(span, h.upstream.Endpoint(), req.Model, status)

	if err != nil {
		c.err = classifyUpstream(err)
		return c
	}
	c.response = resp
	return c
}

func (h *Handler) fail(ctx context.Context, span trace.Span, w http.ResponseWriter, r *http.Request, start time.Time, c *call) {
	kind := KindOf(c.err)

	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, ErrorBody)

	level := slog.LevelError
	if kind == InvalidInboundPayload || errors.Is(c.err, context.Canceled) {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "relay failed",
		"error_kind", string(kind),
		"error", c.err,
		"method", r.Method,
	)

	requestBytes := 0
	if c.parsed != nil {
		requestBytes = c.parsed.Size
	}
	tracing.SetError(span, string(kind), c.err)
	tracing.SetOutcome(span, audit.OutcomeError, len(ErrorBody))
	h.metrics.RecordRelay(audit.OutcomeError, string(kind), time.Since(start), requestBytes, len(ErrorBody))
	h.record(ctx, r, start, c)
}

func (h *Handler) record(ctx context.Context, r *http.Request, start time.Time, c *call) {
	if h.recorder == nil {
		return
	}

	rec := audit.Record{
		RequestID:  logging.GetRequestID(ctx),
		RecordedAt: start.UTC(),
		Method:     r.Method,
		Path:       r.URL.Path,
		Duration:   time.Since(start),
	}
	switch {
	case r.Method == http.MethodOptions:
		rec.Outcome = audit.OutcomePreflight
	case c.err != nil:
		rec.Outcome = audit.OutcomeError
		rec.ErrorKind = string(KindOf(c.err))
		rec.ResponseBytes = len(ErrorBody)
	default:
		rec.Outcome = audit.OutcomeSuccess
		rec.ResponseBytes = len(c.response.Body)
	}
	if c.parsed != nil {
		rec.MessageCount = len(c.parsed.Messages)
		rec.RequestHash = c.parsed.Hash
		rec.RequestBytes = c.parsed.Size
	}
	rec.UpstreamStatus = c.status
	rec.UpstreamLatency = c.latency

	h.recorder.Record(ctx, rec)
}

// defaultHeaders is the fixed CORS header set used when none is injected.
type defaultHeaders struct{}

func (defaultHeaders) SetHeaders(h http.Header, _ *http.Request) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", "86400")
}
