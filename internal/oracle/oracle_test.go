package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPOracleScores(t *testing.T) {
	var got scoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(scoreResponse{Logits: []float64{0.1, 0.2, 0.7}})
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URL = srv.URL
	cfg.VocabSize = 3
	o, err := NewHTTPOracle(cfg)
	require.NoError(t, err)

	logits, err := o.Score(context.Background(), []int{3, 4}, []int{1, 6})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.7}, logits)
	assert.Equal(t, []int{3, 4}, got.Context)
	assert.Equal(t, []int{1, 6}, got.Sequence)
}

func TestHTTPOracleRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			want: "status 503",
		},
		{
			name: "server error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(scoreResponse{Error: "model not loaded"})
			},
			want: "model not loaded",
		},
		{
			name: "wrong vocabulary size",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(scoreResponse{Logits: []float64{1}})
			},
			want: "want 3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cfg := DefaultHTTPConfig()
			cfg.URL = srv.URL
			cfg.VocabSize = 3
			o, err := NewHTTPOracle(cfg)
			require.NoError(t, err)

			_, err = o.Score(context.Background(), nil, []int{1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPOracleOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URL = srv.URL
	cfg.FailureThreshold = 2
	cfg.CooldownPeriod = time.Minute
	cfg.RequestsPerSecond = 0
	o, err := NewHTTPOracle(cfg)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := o.Score(context.Background(), nil, []int{1})
		require.Error(t, err)
	}
	_, err = o.Score(context.Background(), nil, []int{1})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", o.State())
}

func TestNewHTTPOracleRequiresURL(t *testing.T) {
	_, err := NewHTTPOracle(HTTPConfig{})
	assert.Error(t, err)
}

func TestScriptedFollowsScript(t *testing.T) {
	s := NewScripted([]int{1, 6, 7}, 10, 2)

	logits, err := s.Score(context.Background(), nil, []int{1})
	require.NoError(t, err)
	assert.Equal(t, s.Boost, logits[6])
	assert.Equal(t, s.Penalty, logits[2])

	logits, err = s.Score(context.Background(), nil, []int{1, 6, 7})
	require.NoError(t, err)
	for i, l := range logits {
		if i != 2 {
			assert.Zero(t, l)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Score(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuncAdapter(t *testing.T) {
	var o Func = func(_ context.Context, prompt, seq []int) ([]float64, error) {
		return []float64{float64(len(prompt)), float64(len(seq))}, nil
	}
	got, err := o.Score(context.Background(), []int{1, 2}, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, got)
}
