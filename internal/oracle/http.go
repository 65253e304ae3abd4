// Package oracle provides next-token scorers for beam search: an HTTP client
// for a model server, a scripted oracle for offline runs, and a func adapter.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"situatedbeam/internal/logging"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("oracle unavailable")

// HTTPConfig configures an HTTPOracle.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// FailureThreshold is the consecutive failure count that opens the
	// breaker.
	FailureThreshold uint32
	// CooldownPeriod is how long the breaker stays open before probing.
	CooldownPeriod time.Duration
	// VocabSize, when positive, is the exact logits length the server must
	// return.
	VocabSize int
}

// DefaultHTTPConfig returns settings for a local model server.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		URL:               "http://localhost:8080/score",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 50,
		Burst:             10,
		FailureThreshold:  5,
		CooldownPeriod:    30 * time.Second,
	}
}

type scoreRequest struct {
	Context  []int `json:"context"`
	Sequence []int `json:"sequence"`
}

type scoreResponse struct {
	Logits []float64 `json:"logits"`
	Error  string    `json:"error,omitempty"`
}

// HTTPOracle scores sequences by POSTing them to a model server.
type HTTPOracle struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPOracle creates an HTTP oracle.
func NewHTTPOracle(cfg HTTPConfig) (*HTTPOracle, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("oracle url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPConfig().Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultHTTPConfig().FailureThreshold
	}

	o := &HTTPOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oracle",
		MaxRequests: 1,
		Timeout:     cfg.CooldownPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.OracleWarn("circuit %s: %s -> %s", name, from, to)
		},
	})
	logging.Oracle("http oracle at %s (timeout=%v, rps=%g, trip after %d failures)",
		cfg.URL, cfg.Timeout, cfg.RequestsPerSecond, cfg.FailureThreshold)
	return o, nil
}

// Score implements beam.Oracle.
func (o *HTTPOracle) Score(ctx context.Context, prompt, sequence []int) ([]float64, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	out, err := o.breaker.Execute(func() (interface{}, error) {
		return o.post(ctx, prompt, sequence)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.([]float64), nil
}

func (o *HTTPOracle) post(ctx context.Context, prompt, sequence []int) ([]float64, error) {
	body, err := json.Marshal(scoreRequest{Context: prompt, Sequence: sequence})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(msg))
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("oracle error: %s", result.Error)
	}
	if len(result.Logits) == 0 {
		return nil, fmt.Errorf("oracle returned no logits")
	}
	if o.cfg.VocabSize > 0 && len(result.Logits) != o.cfg.VocabSize {
		return nil, fmt.Errorf("oracle returned %d logits, want %d", len(result.Logits), o.cfg.VocabSize)
	}

	logging.OracleDebug("scored sequence of %d tokens", len(sequence))
	return result.Logits, nil
}

// State reports the breaker state.
func (o *HTTPOracle) State() string {
	return o.breaker.State().String()
}
