package logger

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Type alias for slog.Level for easier usage
type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug // -4
	LevelInfo    = slog.LevelInfo  // 0
	LevelWarning = slog.LevelWarn  // 4
	LevelError   = slog.LevelError // 8
	LevelFatal   = slog.Level(12)  // 12
)

var (
	Logger          *slog.Logger
	errorSampleRate int32                       = 1 // log every warning and error unless ERROR_SAMPLE_RATE says otherwise
	programLevel                                = new(slog.LevelVar)
	shutdownFunc    func(context.Context) error // nil unless OTEL is in use
)

// Counters are incremented regardless of sampling and served on /metrics
var (
	LogMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surveylogic",
		Name:      "log_messages_total",
		Help:      "Warnings and errors reported, before sampling.",
	}, []string{"level"})

	HTTPErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surveylogic",
		Name:      "http_error_responses_total",
		Help:      "HTTP responses with a 4xx or 5xx status.",
	}, []string{"code"})

	SlowRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surveylogic",
		Name:      "slow_requests_total",
		Help:      "Requests that took longer than the slow request threshold.",
	})
)

func init() {
	programLevel.Set(slog.LevelInfo)

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := ParseLevel(levelStr); err == nil {
			programLevel.Set(level)
		}
	}

	// ERROR_SAMPLE_RATE=100 logs 1% of warnings and errors
	if sampleStr := os.Getenv("ERROR_SAMPLE_RATE"); sampleStr != "" {
		if rate, err := strconv.Atoi(sampleStr); err == nil && rate > 0 {
			atomic.StoreInt32(&errorSampleRate, int32(rate))
		}
	}

	if strings.ToLower(os.Getenv("OTEL_ENABLED")) != "true" {
		setupJSONLogging()
		return
	}

	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = "surveylogic"
	}

	shutdown, err := setupOTELLogging(context.Background(), serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup OTEL logging, falling back to JSON: %v\n", err)
		setupJSONLogging()
		return
	}
	shutdownFunc = shutdown
	fmt.Fprintf(os.Stderr, "OpenTelemetry logging enabled for service: %s (sampling: 1/%d)\n", serviceName, atomic.LoadInt32(&errorSampleRate))
}

// setupJSONLogging configures standard JSON logging to stdout
func setupJSONLogging() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: programLevel,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// setupOTELLogging bridges slog to an OTLP gRPC log exporter
func setupOTELLogging(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	otelHandler := otelslog.NewHandler(
		serviceName,
		otelslog.WithLoggerProvider(loggerProvider),
	)

	Logger = slog.New(&levelHandler{level: programLevel, handler: otelHandler})
	slog.SetDefault(Logger)

	return loggerProvider.Shutdown, nil
}

// levelHandler wraps a handler to filter by level
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTEL exporter, if any. Call during application shutdown.
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

// SetLevel sets the minimum log level for the logger
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// SetSampleRate logs one in every rate warnings and errors
func SetSampleRate(rate int) {
	if rate < 1 {
		rate = 1
	}
	atomic.StoreInt32(&errorSampleRate, int32(rate))
}

// ParseLevel converts a string level name to slog.Level
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

// shouldSample returns true for one out of every errorSampleRate calls
func shouldSample() bool {
	rate := atomic.LoadInt32(&errorSampleRate)
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Trace logs a trace-level message (never sampled)
func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs a debug-level message (never sampled)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info-level message (never sampled)
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts every warning but logs only a sample
func Warn(msg string, args ...any) {
	LogMessages.WithLabelValues("warn").Inc()
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts every error but logs only a sample
func Error(msg string, args ...any) {
	LogMessages.WithLabelValues("error").Inc()
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs a fatal-level message and exits
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	os.Exit(1)
}

// HTTPStatus counts 4xx and 5xx responses; other statuses are ignored
func HTTPStatus(status int) {
	switch {
	case status >= 500:
		HTTPErrors.WithLabelValues(strconv.Itoa(status)).Inc()
		LogMessages.WithLabelValues("error").Inc()
	case status >= 400:
		HTTPErrors.WithLabelValues(strconv.Itoa(status)).Inc()
		LogMessages.WithLabelValues("warn").Inc()
	}
}

// WarnSlowRequest counts a slow request
func WarnSlowRequest() {
	SlowRequests.Inc()
	LogMessages.WithLabelValues("warn").Inc()
}
