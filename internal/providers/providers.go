package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"econpulse/internal/model"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "econpulse/0.1"
)

// ErrRateLimited is returned by a connector when its request budget for the
// current window is spent. The cascade treats it like any other fetch
// failure.
var ErrRateLimited = errors.New("providers: rate limit exhausted")

// IndicatorSource is the fetch surface the cascade and aggregator consume.
type IndicatorSource interface {
	Name() string
	FetchIndicators(ctx context.Context) ([]model.Indicator, error)
}

// FetchFunc fetches one indicator family from one source.
type FetchFunc func(ctx context.Context) ([]model.Indicator, error)

// Get performs a bounded GET and returns the body. Any non-2xx status is a
// failure; the body is never partially interpreted.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("request failed (%s)", resp.Status)
	}
	return body, nil
}

// LogParseFailure records a schema mismatch with source identity and raw
// payload size, never the payload itself.
func LogParseFailure(source string, payload []byte, err error) {
	slog.Error("payload parse failed",
		"source", source,
		"payload_bytes", len(payload),
		"error", err)
}

// Round2 rounds to two decimals. Percentages are rounded after the divide,
// not before, so rounding error does not compound.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ChangePercent computes the percentage change from previous to current,
// rounded to two decimals. Zero previous yields zero.
func ChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return Round2((current - previous) / previous * 100)
}

func Getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func GetenvInt(key string, fallback int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func GetenvDuration(key string, fallback time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
