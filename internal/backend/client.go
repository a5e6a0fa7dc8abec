package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	prometheusCallboard "git.mci.dev/mse/sre/phoenix/golang/callboard/internal/prometheus"
	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

var (
	ErrNotFound    = errors.New("voicemail not found")
	ErrServerError = errors.New("voicemail api server error")
	ErrInvalidURL  = errors.New("invalid voicemail api base url")
)

// StatusError is a non-2xx answer from the voicemail API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("voicemail api returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrServerError:
		return e.Code >= http.StatusInternalServerError
	default:
		return false
	}
}

// Unavailable reports whether err means the API could not be reached or could
// not serve the request, as opposed to rejecting it.
func Unavailable(err error) bool {
	return errors.Is(err, ErrServerError) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

type Settings struct {
	BaseURL         string
	Timeout         time.Duration
	RetryAttempts   uint
	RetryMinBackoff time.Duration
	RetryMaxBackoff time.Duration
	Breaker         circuitbreak.Settings
	Signal          *circuitbreak.Signal

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

type response struct {
	status int
	body   []byte
}

type request struct {
	operation      string
	method         string
	url            string
	voicemailID    string
	body           []byte
	idempotencyKey string
}

type Client struct {
	CircuitBreaker *gobreaker.CircuitBreaker[*response]

	baseURL    string
	rootURL    string
	httpClient *http.Client
	settings   Settings
}

var apiVersionSuffix = regexp.MustCompile(`/api/v[0-9]+/?$`)

func NewClient(settings Settings) (*Client, error) {
	parsed, err := url.Parse(settings.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, settings.BaseURL)
	}

	root := *parsed
	root.Path = apiVersionSuffix.ReplaceAllString(root.Path, "")
	root.RawQuery = ""

	if settings.RetryAttempts == 0 {
		settings.RetryAttempts = 1
	}

	httpClient := settings.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: settings.Timeout}
	}

	breaker := settings.Breaker
	breaker.IsSuccessful = func(err error) bool {
		return err == nil || !errors.Is(err, ErrServerError)
	}

	return &Client{
		CircuitBreaker: gobreaker.NewCircuitBreaker[*response](
			circuitbreak.NewSettings(circuitbreak.BackendService, breaker, settings.Signal),
		),
		baseURL:    parsed.String(),
		rootURL:    root.String(),
		httpClient: httpClient,
		settings:   settings,
	}, nil
}

func (c *Client) endpoint(query string, elem ...string) (string, error) {
	apiURL, err := url.JoinPath(c.baseURL, elem...)
	if err != nil {
		return "", err
	}

	if query != "" {
		apiURL += "?" + query
	}

	return apiURL, nil
}

// read sends an idempotent request, retrying server failures with backoff.
func (c *Client) read(ctx context.Context, req request, out any) error {
	return c.execute(ctx, req, out, c.settings.RetryAttempts)
}

// write sends a mutating request once.
func (c *Client) write(ctx context.Context, req request, out any) error {
	return c.execute(ctx, req, out, 1)
}

func (c *Client) execute(ctx context.Context, req request, out any, attempts uint) error {
	timer := prometheus.NewTimer(prometheusCallboard.BackendRequestDuration.WithLabelValues(req.operation))
	defer timer.ObserveDuration()

	resp, err := c.CircuitBreaker.Execute(func() (*response, error) {
		var resp *response

		err := retry.Do(
			func() error {
				var err error

				resp, err = c.doRequest(ctx, req)

				return err
			},
			retry.Attempts(attempts),
			retry.DelayType(retry.BackOffDelay),
			retry.Delay(c.settings.RetryMinBackoff),
			retry.MaxDelay(c.settings.RetryMaxBackoff),
			retry.RetryIf(func(err error) bool {
				return errors.Is(err, ErrServerError)
			}),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
		)
		if err != nil {
			return nil, err
		}

		return resp, nil
	})
	if err != nil {
		prometheusCallboard.BackendRequests.WithLabelValues(req.operation, prometheusCallboard.OutcomeFailure).Inc()

		return err
	}

	prometheusCallboard.BackendRequests.WithLabelValues(req.operation, prometheusCallboard.OutcomeSuccess).Inc()

	if out == nil {
		return nil
	}

	err = json.Unmarshal(resp.body, out)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", req.operation, err)
	}

	return nil
}

func (c *Client) doRequest(ctx context.Context, req request) (*response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")

	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json;charset=utf-8")
	}

	if req.idempotencyKey != "" {
		httpReq.Header.Set(IdempotencyKeyHeader, req.idempotencyKey)
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.BackendLogger.Warn("request failed",
			zap.Int("status", 0),
			zap.String("method", req.method),
			zap.String("path", httpReq.URL.Path),
			zap.String("voicemail_id", req.voicemailID),
			zap.Duration("duration", time.Since(start)),
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w: %w", ErrServerError, err)
	}

	defer func() {
		cerr := httpResp.Body.Close()
		if cerr != nil {
			logging.Logger.Error("Failed to close response body", zap.Error(cerr))
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerError, err)
	}

	logging.BackendLogger.Info("request",
		zap.Int("status", httpResp.StatusCode),
		zap.String("method", req.method),
		zap.String("path", httpReq.URL.Path),
		zap.String("voicemail_id", req.voicemailID),
		zap.Duration("duration", time.Since(start)),
	)

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: httpResp.StatusCode, Body: string(respBody)}
	}

	return &response{status: httpResp.StatusCode, body: respBody}, nil
}
