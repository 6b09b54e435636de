package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WorkflowResults counts workflow invocations by workflow and outcome.
	WorkflowResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_workflow_results_total",
		Help: "Total workflow invocations by workflow name and outcome",
	}, []string{"workflow", "outcome"})

	// PresenceRoomConnections is the gauge of presence connections per room.
	PresenceRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkwell_presence_room_connections",
		Help: "Number of presence WebSocket connections per room",
	}, []string{"room_id"})
)

// InitMetrics creates the fiberprometheus middleware for HTTP-level metrics.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware wraps the fiberprometheus middleware as a fiber.Handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
