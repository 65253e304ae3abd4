package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, cfg Config) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core), cfg)
	t.Cleanup(func() { SetLogger(zap.NewNop(), Config{}) })
	return logs
}

func TestCategoriesAreNamedLoggers(t *testing.T) {
	logs := observe(t, Config{DebugMode: true})

	Search("round %d kept %d", 3, 5)
	Kernel("derived %d facts", 12)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "search", entries[0].LoggerName)
	assert.Equal(t, "round 3 kept 5", entries[0].Message)
	assert.Equal(t, "kernel", entries[1].LoggerName)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, Config{
		DebugMode:  true,
		Categories: map[string]bool{"grammar": false},
	})

	GrammarDebug("refill after LENGTH")
	Validator("kept 2 plans")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "validator", entries[0].LoggerName)
	assert.False(t, IsCategoryEnabled(CategoryGrammar))
	assert.True(t, IsCategoryEnabled(CategoryStore), "unlisted categories default to enabled")
}

func TestProductionModeIsNoop(t *testing.T) {
	logs := observe(t, Config{DebugMode: false})

	Boot("should not appear")
	Get(CategoryOracle).Error("nor this")

	assert.Zero(t, logs.Len())
}

func TestWithCarriesFields(t *testing.T) {
	logs := observe(t, Config{DebugMode: true})

	Get(CategorySearch).With("run_id", "abc").Info("started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].ContextMap()["run_id"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARNING", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestInitializeWithoutDebugMode(t *testing.T) {
	t.Cleanup(func() { SetLogger(zap.NewNop(), Config{}) })
	require.NoError(t, Initialize(Config{DebugMode: false, Level: "bogus"}))
	assert.False(t, IsCategoryEnabled(CategoryBoot))
}

func TestTimerThreshold(t *testing.T) {
	logs := observe(t, Config{DebugMode: true})

	timer := StartTimer(CategoryOracle, "score")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)

	assert.Greater(t, elapsed, time.Duration(0))
	entries := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "score slow")
}
