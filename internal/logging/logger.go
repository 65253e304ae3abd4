// Package logging provides config-driven categorized logging for the planner.
// Every category gets a named zap logger; when debug mode is off or a category
// is disabled the returned logger is a no-op.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // CLI startup, config loading
	CategorySearch    Category = "search"    // Beam search rounds
	CategoryGrammar   Category = "grammar"   // Grammar cursor refills
	CategoryOracle    Category = "oracle"    // Scoring oracle calls
	CategoryValidator Category = "validator" // Plan validation verdicts
	CategoryKernel    Category = "kernel"    // Mangle feasibility kernel
	CategoryStore     Category = "store"     // SQLite persistence
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	DebugMode  bool
	Level      string
	Format     string // json, console
	Categories map[string]bool
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	config  Config
	loggers = make(map[Category]*Logger)
)

// Initialize builds the root zap logger from cfg. Safe to call more than once;
// the previous root logger is synced and replaced.
func Initialize(cfg Config) error {
	if !cfg.DebugMode {
		SetLogger(zap.NewNop(), cfg)
		return nil
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	built, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(built, cfg)

	Boot("logging initialized level=%s format=%s", level, zcfg.Encoding)
	return nil
}

// SetLogger installs an already constructed zap logger. Tests use this with
// zaptest loggers and observer cores.
func SetLogger(l *zap.Logger, cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	_ = root.Sync()
	root = l
	config = cfg
	loggers = make(map[Category]*Logger)
}

// ParseLevel maps a config level string to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	base := zap.NewNop()
	if categoryEnabledLocked(category) {
		base = root.Named(string(category))
	}
	l := &Logger{category: category, sugar: base.Sugar()}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes the root logger (call at shutdown)
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootWarn logs a warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// Search logs to the search category
func Search(format string, args ...interface{}) {
	Get(CategorySearch).Info(format, args...)
}

func SearchDebug(format string, args ...interface{}) {
	Get(CategorySearch).Debug(format, args...)
}

func SearchWarn(format string, args ...interface{}) {
	Get(CategorySearch).Warn(format, args...)
}

// GrammarDebug logs cursor refills
func GrammarDebug(format string, args ...interface{}) {
	Get(CategoryGrammar).Debug(format, args...)
}

func Oracle(format string, args ...interface{}) {
	Get(CategoryOracle).Info(format, args...)
}

func OracleDebug(format string, args ...interface{}) {
	Get(CategoryOracle).Debug(format, args...)
}

func OracleWarn(format string, args ...interface{}) {
	Get(CategoryOracle).Warn(format, args...)
}

// Validator logs to the validator category
func Validator(format string, args ...interface{}) {
	Get(CategoryValidator).Info(format, args...)
}

func ValidatorDebug(format string, args ...interface{}) {
	Get(CategoryValidator).Debug(format, args...)
}

func Kernel(format string, args ...interface{}) {
	Get(CategoryKernel).Info(format, args...)
}

func KernelDebug(format string, args ...interface{}) {
	Get(CategoryKernel).Debug(format, args...)
}

func KernelWarn(format string, args ...interface{}) {
	Get(CategoryKernel).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// =============================================================================
// TIMING
// =============================================================================

// Timer measures an operation and logs its duration to a category.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s slow: %v (threshold %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
