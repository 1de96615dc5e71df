package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrUnavailable means the transcription server could not be reached.
	ErrUnavailable = errors.New("transcribe: server unavailable")
	// ErrTimeout means a transcription request ran out of time.
	ErrTimeout = errors.New("transcribe: request timed out")
)

const healthTimeout = 5 * time.Second

// RemoteConfig configures a Remote transcriber.
type RemoteConfig struct {
	BaseURL    string // server root, e.g. http://localhost:8000
	Model      string
	Language   string // empty = auto-detect
	APIKey     string // optional; speaches ignores it
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Remote transcribes through an OpenAI-compatible /v1/audio/transcriptions
// endpoint. One http.Client is shared by all requests so connections are
// reused.
type Remote struct {
	cfg    RemoteConfig
	http   *http.Client
	client *openai.Client
}

// NewRemote creates a Remote transcriber.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transcribe: base URL is empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("transcribe: model is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL + "/v1"
	oc.HTTPClient = httpClient

	return &Remote{
		cfg:    cfg,
		http:   httpClient,
		client: openai.NewClientWithConfig(oc),
	}, nil
}

// Transcribe uploads the file at path and returns its transcript. Transient
// failures (connection errors, timeouts, HTTP 429 and 5xx) are retried with
// exponential backoff.
func (r *Remote) Transcribe(ctx context.Context, path string) (*Result, error) {
	req := openai.AudioRequest{
		Model:    r.cfg.Model,
		FilePath: path,
		Language: r.cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
	}

	slog.Info("[API] sending audio", "url", r.cfg.BaseURL+"/v1/audio/transcriptions", "model", r.cfg.Model)

	delay := r.cfg.RetryDelay
	for attempt := 0; ; attempt++ {
		resp, err := r.client.CreateTranscription(ctx, req)
		if err == nil {
			slog.Info("[API] transcription completed", "attempt", attempt+1)
			return &Result{
				Text:     strings.TrimSpace(resp.Text),
				Language: resp.Language,
				Duration: time.Duration(resp.Duration * float64(time.Second)),
			}, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("transcribe: %w", ctx.Err())
		}

		err = r.classify(err)
		if attempt >= r.cfg.MaxRetries || !retryable(err) {
			return nil, err
		}

		slog.Warn("[API] request failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transcribe: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// classify maps transport and HTTP failures onto the package's errors.
func (r *Remote) classify(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: could not connect to %s, make sure the speaches server is running: %v",
			ErrUnavailable, r.cfg.BaseURL, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w after %s, the audio file may be too large: %v", ErrTimeout, r.cfg.Timeout, err)
	}

	if code := statusCode(err); code != 0 {
		return &StatusError{Code: code, Err: err}
	}
	return fmt.Errorf("transcribe: request failed: %w", err)
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcribe: API returned status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func retryable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return false
}

// CheckHealth reports whether the server answers 200 on /health, falling
// back to /docs for servers without a health route. It doubles as a
// connection warm-up before a transcription.
func (r *Remote) CheckHealth(ctx context.Context) bool {
	for _, route := range []string{"/health", "/docs"} {
		ok, err := r.probe(ctx, r.cfg.BaseURL+route)
		if err != nil {
			slog.Debug("[API] health probe failed", "route", route, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (r *Remote) probe(ctx context.Context, url string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// Close releases idle connections.
func (r *Remote) Close() error {
	r.http.CloseIdleConnections()
	return nil
}
