// Package osv implements the OSV querybatch client used to fill the vulnerability cache.
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/ortelius/pdvd-depscan/internal/metrics"
	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/util"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// DefaultAPIURL is the public OSV batch endpoint
const DefaultAPIURL = "https://api.osv.dev/v1/querybatch"

// ErrUnexpectedResponse marks responses that are not a well formed, aligned batch result
var ErrUnexpectedResponse = errors.New("unexpected OSV response")

// StatusError is returned for non-success HTTP responses
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("OSV API returned status: %s", e.Status)
}

// Config holds the client settings
type Config struct {
	APIURL           string
	Ecosystem        string
	HTTPTimeout      time.Duration
	MaxRetryElapsed  time.Duration
	InitialRetryWait time.Duration
}

// Client checks for vulnerabilities using the OSV querybatch API
type Client struct {
	HTTPClient *http.Client
	APIURL     string
	Ecosystem  string

	maxRetryElapsed  time.Duration
	initialRetryWait time.Duration
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

// Ensure compile-time interface check
var _ vulncache.Fetcher = (*Client)(nil)

// NewClient creates an OSV client. m and logger may be nil.
func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Ecosystem == "" {
		cfg.Ecosystem = "PyPI"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.InitialRetryWait <= 0 {
		cfg.InitialRetryWait = 500 * time.Millisecond
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		HTTPClient:       &http.Client{Timeout: cfg.HTTPTimeout},
		APIURL:           cfg.APIURL,
		Ecosystem:        cfg.Ecosystem,
		maxRetryElapsed:  cfg.MaxRetryElapsed,
		initialRetryWait: cfg.InitialRetryWait,
		metrics:          m,
		logger:           logger,
	}
}

// QueryBatch sends one querybatch request covering every identity and returns the
// per-identity results in request order. Transport errors, 5xx and 429 responses are
// retried until MaxRetryElapsed; any other failure fails the whole batch.
func (c *Client) QueryBatch(ctx context.Context, ids []model.Identity) ([]model.QueryResult, error) {
	if len(ids) == 0 {
		return []model.QueryResult{}, nil
	}

	batch := model.BatchQuery{Queries: make([]model.Query, 0, len(ids))}
	for _, id := range ids {
		batch.Queries = append(batch.Queries, model.Query{
			Package: model.QueryPackage{PURL: util.BuildPURL(c.Ecosystem, id.Name, id.Version)},
		})
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.metrics.OSVBatchSize.Observe(float64(len(ids)))
	start := time.Now()

	var resp model.BatchResponse
	attempt := 0
	operation := func() error {
		attempt++
		r, err := c.post(ctx, payload)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	// Configure exponential backoff
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialRetryWait
	bo.MaxElapsedTime = c.maxRetryElapsed

	var policy backoff.BackOff = bo
	if c.maxRetryElapsed <= 0 {
		policy = &backoff.StopBackOff{}
	}

	err = backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.logger.Sugar().Warnf("Retrying OSV querybatch (attempt %d) in %s: %v", attempt, wait, err)
	})

	c.metrics.OSVRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.OSVRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(resp.Results) != len(ids) {
		c.metrics.OSVRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %d results for %d queries", ErrUnexpectedResponse, len(resp.Results), len(ids))
	}

	c.metrics.OSVRequests.WithLabelValues("ok").Inc()
	return resp.Results, nil
}

// post performs one HTTP attempt. Errors wrapped in backoff.Permanent are not retried.
func (c *Client) post(ctx context.Context, payload []byte) (model.BatchResponse, error) {
	var batchResp model.BatchResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(payload))
	if err != nil {
		return batchResp, backoff.Permanent(fmt.Errorf("failed to build OSV request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return batchResp, backoff.Permanent(fmt.Errorf("OSV API request failed: %w", err))
		}
		return batchResp, fmt.Errorf("OSV API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return batchResp, statusErr
		}
		return batchResp, backoff.Permanent(statusErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		return batchResp, backoff.Permanent(fmt.Errorf("%w: failed to decode body: %v", ErrUnexpectedResponse, err))
	}
	if batchResp.Results == nil {
		return batchResp, backoff.Permanent(fmt.Errorf("%w: missing results", ErrUnexpectedResponse))
	}

	return batchResp, nil
}
