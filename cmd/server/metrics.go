package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liamcoop/surveylogic/internal/logger"
)

const slowRequestThreshold = time.Second

var (
	routingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surveylogic",
		Name:      "routing_decisions_total",
		Help:      "Routing decisions by how they were reached.",
	}, []string{"reason"})

	expressionEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surveylogic",
		Name:      "expression_evaluations_total",
		Help:      "Expression evaluations by outcome.",
	}, []string{"result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "surveylogic",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func countEvaluation(ok bool) {
	if ok {
		expressionEvaluations.WithLabelValues("ok").Inc()
		return
	}
	expressionEvaluations.WithLabelValues("invalid").Inc()
}

// requestLogger logs each request through the structured logger and feeds
// the HTTP metrics
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		requestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		logger.HTTPStatus(status)
		if elapsed > slowRequestThreshold {
			logger.WarnSlowRequest()
		}

		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed.String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
