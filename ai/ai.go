package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"dcorpbot/config"
	"dcorpbot/logger"
	"dcorpbot/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// User-facing diagnostics returned in place of model output.
const (
	DiagnosticNotConfigured = "Клиент для работы с нейросетью не инициализирован. Проверьте конфигурацию."
	DiagnosticEmpty         = "Нейросеть вернула пустой ответ. Попробуйте переформулировать запрос."
	DiagnosticBlocked       = "Нейросеть отказалась отвечать на запрос (причина: %s). Попробуйте переформулировать запрос."
	DiagnosticUnreachable   = "Не удалось подключиться к серверу нейросети. Убедитесь, что он запущен и URL указан верно."
	DiagnosticFailure       = "Произошла ошибка при обращении к нейросети. Пожалуйста, попробуйте позже."
)

var (
	ErrNotConfigured = errors.New("ai backend is not configured")
	ErrEmptyResponse = errors.New("ai backend returned an empty response")
)

// BlockedError reports output withheld by the backend, e.g. safety filtering.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "ai response blocked: " + e.Reason
}

// UpstreamError wraps transport failures and non-2xx answers.
type UpstreamError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Unreachable is true when the host refused the connection or did not resolve.
func (e *UpstreamError) Unreachable() bool {
	if e.StatusCode != 0 || e.Err == nil {
		return false
	}
	if errors.Is(e.Err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(e.Err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host")
}

type Options struct {
	Temperature float64
	MaxTokens   int
}

type Option func(*Options)

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// Backend is one AI protocol. Generate returns trimmed non-empty text or an error.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Reply is what Complete hands back: Text is always safe to show the
// user, Err is set when Text is a diagnostic.
type Reply struct {
	Text string
	Err  error
}

// Completer is the contract the router depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ...Option) Reply
}

var Module = fx.Provide(
	fx.Annotate(Provide, fx.As(new(Completer))),
)

// Adapter turns a Backend into a Completer that never fails. Its
// configuration is fixed at construction; without a backend every call
// yields DiagnosticNotConfigured.
type Adapter struct {
	backend  Backend
	defaults Options
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewAdapter(backend Backend, defaults Options, log *zap.Logger, m *metrics.Metrics) *Adapter {
	return &Adapter{
		backend:  backend,
		defaults: defaults,
		log:      log.Named("ai"),
		metrics:  m,
	}
}

// Provide builds the adapter for the configured backend.
func Provide(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Adapter {
	defaults := Options{Temperature: cfg.AI.Temperature, MaxTokens: cfg.AI.MaxTokens}
	backend, err := NewBackend(cfg.AI, &http.Client{Timeout: cfg.AI.Timeout})
	if err != nil {
		log.Warn("ai backend disabled", zap.String("backend", cfg.AI.Backend), zap.Error(err))
		return NewAdapter(nil, defaults, log, m)
	}
	log.Info("ai backend configured", zap.String("backend", backend.Name()))
	return NewAdapter(backend, defaults, log, m)
}

// NewBackend returns ErrNotConfigured (wrapped) when required settings are missing.
func NewBackend(cfg config.AI, client *http.Client) (Backend, error) {
	switch cfg.Backend {
	case config.BackendOpenAI, "":
		if cfg.BaseURL == "" || cfg.Model == "" {
			return nil, fmt.Errorf("%w: NEURO_API_BASE_URL and NEURO_MODEL_NAME are required", ErrNotConfigured)
		}
		return NewOpenAI(client, cfg.BaseURL, cfg.Model, cfg.APIKey), nil
	case config.BackendGemini:
		if cfg.GeminiAPIKey == "" || cfg.GeminiModel == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY and GEMINI_MODEL_NAME are required", ErrNotConfigured)
		}
		g, err := NewGemini(context.Background(), client, cfg.GeminiBaseURL, cfg.GeminiAPIVersion, cfg.GeminiModel, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrNotConfigured, cfg.Backend)
	}
}

func (a *Adapter) Enabled() bool {
	return a.backend != nil
}

func (a *Adapter) Complete(ctx context.Context, prompt string, opts ...Option) Reply {
	if a.backend == nil {
		a.metrics.CompletionFinished("none", Outcome(ErrNotConfigured))
		a.log.Error("completion requested but ai backend is not configured")
		return Reply{Text: DiagnosticNotConfigured, Err: ErrNotConfigured}
	}

	o := a.defaults
	for _, opt := range opts {
		opt(&o)
	}

	name := a.backend.Name()
	a.log.Info("sending prompt",
		zap.String("backend", name),
		zap.String("prompt", logger.Truncate(prompt, 70)),
	)

	text, err := a.backend.Generate(ctx, prompt, o)
	if err == nil && text == "" {
		err = ErrEmptyResponse
	}
	a.metrics.CompletionFinished(name, Outcome(err))
	if err != nil {
		a.log.Error("completion failed", zap.String("backend", name), zap.Error(err))
		return Reply{Text: Diagnostic(err), Err: err}
	}

	a.log.Info("completion received", zap.String("backend", name), zap.Int("length", len(text)))
	return Reply{Text: text}
}

// Diagnostic maps a completion error to the message shown to the user.
func Diagnostic(err error) string {
	var (
		blocked  *BlockedError
		upstream *UpstreamError
	)
	switch {
	case errors.Is(err, ErrNotConfigured):
		return DiagnosticNotConfigured
	case errors.As(err, &blocked):
		return fmt.Sprintf(DiagnosticBlocked, blocked.Reason)
	case errors.Is(err, ErrEmptyResponse):
		return DiagnosticEmpty
	case errors.As(err, &upstream) && upstream.Unreachable():
		return DiagnosticUnreachable
	default:
		return DiagnosticFailure
	}
}

// Outcome is the metrics label for a completion result.
func Outcome(err error) string {
	var (
		blocked  *BlockedError
		upstream *UpstreamError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &blocked):
		return "blocked"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.As(err, &upstream) && upstream.Unreachable():
		return "unreachable"
	default:
		return "error"
	}
}
