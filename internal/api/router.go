package api

import (
	"context"
	"net/http"

	apiContext "clawqa/internal/api/context"
	"clawqa/internal/api/handlers"
	"clawqa/internal/api/middleware"
	"clawqa/internal/pkg/errors"

	"github.com/julienschmidt/httprouter"
)

type Dependencies struct {
	WebhookHandler        *handlers.WebhookHandler
	EscalationRuleHandler *handlers.EscalationRuleHandler
	BugHandler            *handlers.BugHandler
	CycleHandler          *handlers.CycleHandler
	APIKeyHandler         *handlers.APIKeyHandler
	HealthHandler         *handlers.HealthHandler
	MetricsHandler        *handlers.MetricsHandler
	AuthMiddleware        *middleware.AuthMiddleware
	RateLimitMiddleware   *middleware.RateLimitMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	// Operational
	router.GET("/healthz", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Rate limiting runs before authentication
	protected := []func(http.HandlerFunc) http.HandlerFunc{deps.RateLimitMiddleware.Handle, deps.AuthMiddleware.Handle}

	// Webhook subscriptions
	router.POST("/api/v1/webhooks", chain(deps.WebhookHandler.Create, protected...))
	router.GET("/api/v1/webhooks", chain(deps.WebhookHandler.List, protected...))
	router.POST("/api/v1/webhooks/test", chain(deps.WebhookHandler.Test, protected...))
	router.PATCH("/api/v1/webhooks/:webhook_id", chain(deps.WebhookHandler.Update, protected...))
	router.DELETE("/api/v1/webhooks/:webhook_id", chain(deps.WebhookHandler.Delete, protected...))
	router.GET("/api/v1/webhooks/:webhook_id/deliveries", chain(deps.WebhookHandler.Deliveries, protected...))

	// Escalation rules
	router.GET("/api/v1/escalation-rules", chain(deps.EscalationRuleHandler.List, protected...))
	router.POST("/api/v1/escalation-rules", chain(deps.EscalationRuleHandler.Create, protected...))

	// Bug reports and cycles
	router.POST("/api/v1/bugs", chain(deps.BugHandler.Create, protected...))
	router.GET("/api/v1/bugs", chain(deps.BugHandler.List, protected...))
	router.POST("/api/v1/test-cycles/:cycle_id/complete", chain(deps.CycleHandler.Complete, protected...))

	// API keys
	router.POST("/api/v1/api-keys", chain(deps.APIKeyHandler.Create, protected...))
	router.GET("/api/v1/api-keys", chain(deps.APIKeyHandler.List, protected...))
	router.DELETE("/api/v1/api-keys/:key_id", chain(deps.APIKeyHandler.Revoke, protected...))

	return router
}

// chain applies middlewares so that the first one listed runs first.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
