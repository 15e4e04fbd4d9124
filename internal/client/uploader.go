package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FairForge/pollstore/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a whole request, long enough to outlast a server
// poll window of a few seconds.
const DefaultTimeout = 10 * time.Second

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient overrides the HTTP client used by the uploader.
func WithHTTPClient(h *http.Client) Option {
	return func(u *Uploader) {
		if h != nil {
			u.httpClient = h
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		u.timeout = d
	}
}

// WithRetries retries transport failures up to n extra times.
func WithRetries(n int) Option {
	return func(u *Uploader) {
		u.retries = n
	}
}

// WithRate paces requests to perSecond. Zero or less means unlimited.
func WithRate(perSecond float64) Option {
	return func(u *Uploader) {
		if perSecond > 0 {
			u.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithConnectionPerRequest disables keep-alive so every request dials.
func WithConnectionPerRequest() Option {
	return func(u *Uploader) {
		u.connPerRequest = true
	}
}

// WithBackoff overrides the delay between retries.
func WithBackoff(b retry.Backoff) Option {
	return func(u *Uploader) {
		u.backoff = b
	}
}

// Uploader talks to a server over net/http.
type Uploader struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	retries        int
	limiter        *rate.Limiter
	backoff        retry.Backoff
	connPerRequest bool
	logger         *zap.Logger
}

// NewUploader creates an Uploader for serverURL. A URL without a scheme is
// treated as plain http.
func NewUploader(serverURL string, logger *zap.Logger, opts ...Option) (*Uploader, error) {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		return nil, errors.New("client: server URL is required")
	}
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}

	u := &Uploader{
		baseURL: strings.TrimRight(serverURL, "/"),
		timeout: DefaultTimeout,
		backoff: retry.Backoff{Initial: 250 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.25},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(u)
	}

	if u.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DisableKeepAlives = u.connPerRequest
		u.httpClient = &http.Client{Transport: transport}
	}
	if u.retries < 0 {
		u.retries = 0
	}
	return u, nil
}

// URL returns the full URL of a remote path.
func (u *Uploader) URL(remote string) string {
	return u.baseURL + "/" + strings.TrimLeft(remote, "/")
}

// Put stores data under remote and returns the HTTP status.
func (u *Uploader) Put(ctx context.Context, remote string, data []byte) (int, error) {
	status, _, err := u.do(ctx, http.MethodPut, remote, data)
	return status, err
}

// Get fetches remote. The server may hold the request for its poll window.
func (u *Uploader) Get(ctx context.Context, remote string) (int, []byte, error) {
	return u.do(ctx, http.MethodGet, remote, nil)
}

// Upload reads item.Local and stores it under item.Remote.
func (u *Uploader) Upload(ctx context.Context, item Item) Result {
	data, err := readLocal(item)
	if err != nil {
		return Result{Item: item, Err: err}
	}

	status, err := u.Put(ctx, item.Remote, data)
	if err != nil {
		u.logger.Warn("upload failed",
			zap.String("local", item.Local),
			zap.String("remote", item.Remote),
			zap.Error(err))
	}
	return Result{Item: item, Status: status, Err: err}
}

// UploadAll uploads items in order. A failed item does not stop the batch;
// only ctx ending does, and the remaining items then carry ctx's error.
func (u *Uploader) UploadAll(ctx context.Context, items []Item, onResult func(Result)) []Result {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Item: item, Err: err}
		} else {
			res = u.Upload(ctx, item)
		}
		results = append(results, res)
		if onResult != nil {
			onResult(res)
		}
	}
	return results
}

func (u *Uploader) do(ctx context.Context, method, remote string, body []byte) (int, []byte, error) {
	url := u.URL(remote)

	for attempt := 0; ; attempt++ {
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return 0, nil, err
			}
		}

		status, data, err := u.once(ctx, method, url, body)
		if err == nil || attempt >= u.retries || ctx.Err() != nil {
			return status, data, err
		}

		delay := u.backoff.Delay(attempt)
		u.logger.Debug("retrying request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (u *Uploader) once(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
