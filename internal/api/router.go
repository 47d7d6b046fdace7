package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/melkor648/apple-e-commerce/internal/metrics"
	"github.com/melkor648/apple-e-commerce/pkg/tracing"
	"github.com/sirupsen/logrus"
)

type RouterOptions struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Tracer         tracing.Tracer
	Logger         *logrus.Logger
}

func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/register", h.Register).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/products", h.AddProduct).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/order", h.PlaceOrder).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/create-payment-intent", h.CreatePaymentIntent).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/orders/{uid}", h.ListOrders).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breakers", h.CircuitBreakers).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breakers/reset", h.ResetCircuitBreakers).Methods(http.MethodPost)
	router.HandleFunc("/circuit-breakers/{name}/reset", h.ResetCircuitBreaker).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}

	router.Use(recoverMiddleware(opts.Logger))
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(opts.Logger))
	router.Use(corsMiddleware(opts.AllowedOrigins))
	router.Use(opts.Metrics.Middleware)
	router.Use(tracing.NewTracingMiddleware(tracer))

	return router
}
