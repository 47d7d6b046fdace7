package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/melkor648/apple-e-commerce/internal/accounts"
	"github.com/melkor648/apple-e-commerce/internal/apperror"
	"github.com/melkor648/apple-e-commerce/internal/catalog"
	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/internal/orders"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	messageUserRegistered = "User registered"
	messageProductAdded   = "Product added"
	messageOrderPlaced    = "Order placed and email sent"

	healthTimeout = 5 * time.Second
)

type AccountService interface {
	Register(ctx context.Context, input accounts.RegisterInput) (string, error)
}

type CatalogService interface {
	AddProduct(ctx context.Context, input catalog.AddProductInput) (string, error)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, input orders.PlaceOrderInput) (*orders.Placement, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, amount float64, currency string) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	accounts AccountService
	catalog  CatalogService
	orders   OrderService
	payments PaymentService
	store    Pinger
	breakers *circuitbreaker.Manager
	logger   *logrus.Logger
}

func NewHandler(
	accounts AccountService,
	catalog CatalogService,
	orders OrderService,
	payments PaymentService,
	store Pinger,
	breakers *circuitbreaker.Manager,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		accounts: accounts,
		catalog:  catalog,
		orders:   orders,
		payments: payments,
		store:    store,
		breakers: breakers,
		logger:   logger,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	uid, err := h.accounts.Register(r.Context(), accounts.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, models.RegisterResponse{UID: uid, Message: messageUserRegistered})
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	id, err := h.catalog.AddProduct(r.Context(), catalog.AddProductInput{
		Title:       req.Title,
		Price:       req.Price,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, models.CreateProductResponse{ID: id, Message: messageProductAdded})
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	placement, err := h.orders.PlaceOrder(r.Context(), orders.PlaceOrderInput{
		UserID: req.UID,
		Cart:   req.Cart,
		Total:  req.Total,
	})
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.PlaceOrderResponse{OrderID: placement.Order.ID, Message: messageOrderPlaced})
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	if req.Amount == nil {
		h.respondWithAppError(w, r, apperror.Validation("create payment intent", "amount is required"))
		return
	}

	secret, err := h.payments.CreateIntent(r.Context(), *req.Amount, req.Currency)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.PaymentIntentResponse{ClientSecret: secret})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	userOrders, err := h.orders.ListOrders(r.Context(), uid)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, userOrders)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": "storefront-api",
			"error":   err.Error(),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "storefront-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) CircuitBreakers(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.breakers.Snapshots())
}

func (h *Handler) ResetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !h.breakers.Reset(name) {
		respondWithError(w, http.StatusNotFound, "circuit breaker not found")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"circuit_breaker": name,
		"request_id":      RequestIDFromContext(r.Context()),
	}).Info("Circuit breaker reset via API")

	respondWithJSON(w, http.StatusOK, h.breakers.Get(name).Snapshot())
}

func (h *Handler) ResetCircuitBreakers(w http.ResponseWriter, r *http.Request) {
	h.breakers.ResetAll()
	respondWithJSON(w, http.StatusOK, h.breakers.Snapshots())
}
