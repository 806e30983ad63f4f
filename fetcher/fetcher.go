package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-fetch-images/config"
	"github.com/aluiziolira/go-fetch-images/models"
	"github.com/aluiziolira/go-fetch-images/parser"
	"github.com/gocolly/colly/v2"
)

const stateKey = "fetch_state"

// Fetcher retrieves single images with a synchronous colly collector and
// validates the declared response headers before the body is read.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	handlersOnce sync.Once
}

// fetchState carries per-request results out of the collector callbacks.
type fetchState struct {
	start        time.Time
	statusCode   int
	contentType  string
	declaredSize int64
	lengthErr    error
	rejected     *models.FetchResult
	body         []byte
	responded    bool
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be positive")
	}

	// One byte past the ceiling is enough to tell an oversized body apart
	// from one that is exactly at the limit.
	bodyLimit := 0
	if cfg.EnforceBodyLimit {
		bodyLimit = int(cfg.MaxBytes) + 1
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(bodyLimit),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		Metrics:   NewMetrics(),
	}, nil
}

// WithTransport replaces the HTTP transport used for every request.
func (f *Fetcher) WithTransport(transport http.RoundTripper) {
	f.collector.WithTransport(transport)
}

// Fetch retrieves rawURL and classifies the outcome. It never returns a Go
// error; every failure is carried by the result.
func (f *Fetcher) Fetch(rawURL string) models.FetchResult {
	if !parser.HasAcceptedScheme(rawURL) {
		return f.fail(models.FetchResult{
			Kind: models.FetchInvalidURL,
			URL:  rawURL,
			Err:  ErrInvalidURL{URL: rawURL},
		})
	}

	f.configureHandlers()

	state := &fetchState{}
	ctx := colly.NewContext()
	ctx.Put(stateKey, state)

	hdr := http.Header{}
	hdr.Set("User-Agent", f.cfg.UserAgent)
	err := f.collector.Request(http.MethodGet, rawURL, nil, ctx, hdr)

	result := f.resolve(rawURL, state, err)
	if !result.OK() {
		return f.fail(result)
	}
	f.Metrics.IncRequest("succeeded")
	f.Metrics.AddBytes(len(result.Body))
	return result
}

func (f *Fetcher) resolve(rawURL string, state *fetchState, err error) models.FetchResult {
	if state.rejected != nil {
		rejected := *state.rejected
		rejected.URL = rawURL
		return rejected
	}
	if err != nil {
		return models.FetchResult{
			Kind: models.FetchNetworkError,
			URL:  rawURL,
			Err:  classifyError(err, state.statusCode),
		}
	}
	if !state.responded {
		return models.FetchResult{
			Kind: models.FetchNetworkError,
			URL:  rawURL,
			Err:  ErrConnection{Err: errors.New("no response received")},
		}
	}
	if f.cfg.EnforceBodyLimit && int64(len(state.body)) > f.cfg.MaxBytes {
		return models.FetchResult{
			Kind:         models.FetchTooLarge,
			URL:          rawURL,
			ContentType:  state.contentType,
			DeclaredSize: state.declaredSize,
			Err:          ErrTooLarge{Size: int64(len(state.body)), Limit: f.cfg.MaxBytes},
		}
	}
	return models.FetchResult{
		Kind:         models.FetchSuccess,
		URL:          rawURL,
		Body:         state.body,
		ContentType:  state.contentType,
		DeclaredSize: state.declaredSize,
	}
}

func (f *Fetcher) fail(result models.FetchResult) models.FetchResult {
	category := ErrorCategory(result.Err)
	f.Metrics.IncRequest("failed")
	f.Metrics.IncError(category)
	slog.Debug("fetch rejected",
		slog.String("url", result.URL),
		slog.String("kind", result.Kind.String()),
		slog.String("category", category),
		slog.Any("error", result.Err),
	)
	return result
}

func (f *Fetcher) configureHandlers() {
	f.handlersOnce.Do(func() {
		f.collector.OnRequest(func(r *colly.Request) {
			if state := stateFrom(r.Ctx); state != nil {
				state.start = time.Now()
			}
			f.Metrics.IncRequest("started")
		})

		f.collector.OnResponseHeaders(func(r *colly.Response) {
			state := stateFrom(r.Ctx)
			if state == nil {
				return
			}
			state.statusCode = r.StatusCode
			state.contentType = r.Headers.Get("Content-Type")
			state.declaredSize, state.lengthErr = declaredLength(r.Headers.Get("Content-Length"))

			if rejected := f.checkHeaders(state); rejected != nil {
				state.rejected = rejected
				r.Request.Abort()
			}
		})

		f.collector.OnResponse(func(r *colly.Response) {
			state := stateFrom(r.Ctx)
			if state == nil {
				return
			}
			state.responded = true
			state.statusCode = r.StatusCode
			state.body = r.Body
			if !state.start.IsZero() {
				f.Metrics.ObserveDuration(time.Since(state.start))
			}
		})

		f.collector.OnError(func(r *colly.Response, err error) {
			if errors.Is(err, colly.ErrAbortedAfterHeaders) {
				return
			}
			url := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				url = r.Request.URL.String()
			}
			slog.Debug("request error", slog.String("url", url), slog.Any("error", err))
		})
	})
}

// checkHeaders applies the status, content type and declared size policy in
// that order. A malformed Content-Length fails the request. It returns nil when the body should be downloaded.
func (f *Fetcher) checkHeaders(state *fetchState) *models.FetchResult {
	if state.statusCode < 200 || state.statusCode >= 300 {
		return &models.FetchResult{
			Kind: models.FetchNetworkError,
			Err:  classifyError(nil, state.statusCode),
		}
	}
	if !parser.IsImageContentType(state.contentType) {
		return &models.FetchResult{
			Kind:        models.FetchNonImage,
			ContentType: state.contentType,
			Err:         ErrNonImage{ContentType: state.contentType},
		}
	}
	if state.lengthErr != nil {
		return &models.FetchResult{
			Kind:        models.FetchNetworkError,
			ContentType: state.contentType,
			Err:         state.lengthErr,
		}
	}
	if state.declaredSize > f.cfg.MaxBytes {
		return &models.FetchResult{
			Kind:         models.FetchTooLarge,
			ContentType:  state.contentType,
			DeclaredSize: state.declaredSize,
			Err:          ErrTooLarge{Size: state.declaredSize, Limit: f.cfg.MaxBytes, Declared: true},
		}
	}
	return nil
}

func stateFrom(ctx *colly.Context) *fetchState {
	if ctx == nil {
		return nil
	}
	state, _ := ctx.GetAny(stateKey).(*fetchState)
	return state
}

// declaredLength returns 0 when the header is absent.
func declaredLength(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, ErrBadContentLength{Value: value, Err: err}
	}
	if n < 0 {
		return 0, ErrBadContentLength{Value: value}
	}
	return n, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		wrapped := err
		if wrapped == nil {
			wrapped = ErrHTTPStatus{StatusCode: statusCode}
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		return wrapped
	}

	if err == nil {
		return nil
	}
	return err
}
