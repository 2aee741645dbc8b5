package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrSheetTooLarge is returned for remote sheets above Fetcher.MaxBytes.
var ErrSheetTooLarge = errors.New("sheet too large")

// DefaultMaxSheetBytes caps the size of a downloaded sheet.
const DefaultMaxSheetBytes = 8 << 20

// Fetcher opens sheets from disk or over HTTP. Remote reads go through a
// circuit breaker so a dead sheet host fails fast.
type Fetcher struct {
	HTTP      *http.Client
	UserAgent string
	// MaxBytes bounds a remote body; larger bodies fail the fetch.
	MaxBytes int64
	breaker  *gobreaker.CircuitBreaker
	logger   logrus.FieldLogger
}

// NewFetcher returns a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration, logger logrus.FieldLogger) *Fetcher {
	settings := gobreaker.Settings{
		Name:        "sheet-host",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("circuit breaker state changed")
		},
	}
	return &Fetcher{
		HTTP:      &http.Client{Timeout: timeout},
		UserAgent: "pima-poa-league/1.0",
		MaxBytes:  DefaultMaxSheetBytes,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		logger:    logger,
	}
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open returns the contents at location, a file path or an http(s) URL.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !isRemote(location) {
		return os.Open(location)
	}

	body, err := f.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx, location)
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body.([]byte))), nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/csv")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxSheetBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrSheetTooLarge, url, limit)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s failed: %d body=%s", url, resp.StatusCode, string(body))
	}
	return body, nil
}
