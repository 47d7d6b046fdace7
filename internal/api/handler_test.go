package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/melkor648/apple-e-commerce/internal/accounts"
	"github.com/melkor648/apple-e-commerce/internal/catalog"
	"github.com/melkor648/apple-e-commerce/internal/circuitbreaker"
	"github.com/melkor648/apple-e-commerce/internal/identity"
	"github.com/melkor648/apple-e-commerce/internal/metrics"
	"github.com/melkor648/apple-e-commerce/internal/notify"
	"github.com/melkor648/apple-e-commerce/internal/orders"
	"github.com/melkor648/apple-e-commerce/internal/payments"
	"github.com/melkor648/apple-e-commerce/internal/store/memory"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	args := m.Called(ctx, amountMinor, currency)
	return args.String(0), args.Error(1)
}

type unhealthyStore struct{}

func (unhealthyStore) Ping(ctx context.Context) error {
	return errors.New("firestore: unavailable")
}

type testServer struct {
	router   *mux.Router
	store    *memory.Store
	sender   *mockSender
	gateway  *mockGateway
	breakers *circuitbreaker.Manager
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db := memory.NewStore()
	sender := new(mockSender)
	gateway := new(mockGateway)
	m := metrics.New(prometheus.NewRegistry())
	breakers := circuitbreaker.NewManager(circuitbreaker.Config{MaxFailures: 1, Timeout: time.Minute}, logger)

	orderService := orders.NewService(db, db, sender, time.Second, logger)
	orderService.SetMetrics(m)

	handler := NewHandler(
		accounts.NewService(identity.NewLocal(db, logger), db, time.Second, logger),
		catalog.NewService(db, time.Second, logger),
		orderService,
		payments.NewService(gateway, "usd", time.Second, logger),
		db,
		breakers,
		logger,
	)

	return &testServer{
		router:   NewRouter(handler, RouterOptions{Metrics: m, Logger: logger}),
		store:    db,
		sender:   sender,
		gateway:  gateway,
		breakers: breakers,
		metrics:  m,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seedUser(t *testing.T) {
	t.Helper()
	require.NoError(t, s.store.PutUser(context.Background(), &models.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestPlaceOrder_Success(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t)
	s.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg notify.Message) bool {
		return msg.To == "ada@example.com" && strings.Contains(msg.HTML, "$42.50")
	})).Return(nil).Once()

	rec := s.do(http.MethodPost, "/order", `{"uid":"user-1","cart":[{"id":"p1","qty":2}],"total":42.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body models.PlaceOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.OrderID)
	assert.Equal(t, "Order placed and email sent", body.Message)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	userOrders, err := s.store.ListOrdersByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, userOrders, 1)
	assert.Equal(t, body.OrderID, userOrders[0].ID)
	assert.Equal(t, models.OrderStatusPending, userOrders[0].Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("POST", "/order", "200")))
	s.sender.AssertExpectations(t)
}

func TestPlaceOrder_UnknownUser(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/order", `{"uid":"ghost","cart":[],"total":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user ghost not found", decodeError(t, rec))
	assert.Equal(t, 0, s.store.OrderCount())
}

func TestPlaceOrder_EmailFailure(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t)
	s.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("sendgrid: status 403: forbidden")).Once()

	rec := s.do(http.MethodPost, "/order", `{"uid":"user-1","cart":[],"total":10}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "sendgrid: status 403: forbidden", decodeError(t, rec))
	assert.Equal(t, 1, s.store.OrderCount())
}

func TestPlaceOrder_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{"uid":`, want: "Invalid request body"},
		{name: "empty body", body: "", want: "request body is required"},
		{name: "trailing data", body: `{"uid":"u","cart":[],"total":1} {}`, want: "Invalid request body"},
		{name: "cart not a list", body: `{"uid":"u","cart":{},"total":1}`, want: "Invalid request body"},
		{name: "missing total", body: `{"uid":"u","cart":[]}`, want: "total is required"},
		{name: "missing cart", body: `{"uid":"u","total":1}`, want: "cart is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(http.MethodPost, "/order", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
		})
	}
}

func TestPlaceOrder_BodyTooLarge(t *testing.T) {
	s := newTestServer(t)

	body := `{"uid":"u","cart":["` + strings.Repeat("x", maxBodyBytes) + `"],"total":1}`
	rec := s.do(http.MethodPost, "/order", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body too large", decodeError(t, rec))
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/register", `{"email":"ada@example.com","password":"secret123","name":"Ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body models.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.UID)
	assert.Equal(t, "User registered", body.Message)

	user, err := s.store.GetUser(context.Background(), body.UID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)

	rec = s.do(http.MethodPost, "/register", `{"email":"ada@example.com","password":"secret123","name":"Ada"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddProduct(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/products", `{"title":"iPad","price":329,"description":"10.9-inch","imageURL":"https://cdn.example.com/ipad.png"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body models.CreateProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Product added", body.Message)

	product, ok := s.store.Product(body.ID)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/ipad.png", product.ImageURL)

	rec = s.do(http.MethodPost, "/products", `{"price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentIntent_ConvertsToMinorUnits(t *testing.T) {
	s := newTestServer(t)
	s.gateway.On("CreatePaymentIntent", mock.Anything, int64(2000), "usd").Return("pi_123_secret_456", nil).Once()

	rec := s.do(http.MethodPost, "/create-payment-intent", `{"amount":19.999}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body models.PaymentIntentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pi_123_secret_456", body.ClientSecret)
	s.gateway.AssertExpectations(t)
}

func TestCreatePaymentIntent_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/create-payment-intent", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount is required", decodeError(t, rec))

	rec = s.do(http.MethodPost, "/create-payment-intent", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.gateway.On("CreatePaymentIntent", mock.Anything, int64(500), "eur").
		Return("", circuitbreaker.ErrCircuitBreakerOpen).Once()
	rec = s.do(http.MethodPost, "/create-payment-intent", `{"amount":5,"currency":"EUR"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/orders/nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	s.seedUser(t)
	s.sender.On("Send", mock.Anything, mock.Anything).Return(nil)
	s.do(http.MethodPost, "/order", `{"uid":"user-1","cart":[{"id":"p1"}],"total":12}`)

	rec = s.do(http.MethodGet, "/orders/user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var userOrders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &userOrders))
	require.Len(t, userOrders, 1)
	assert.Equal(t, "user-1", userOrders[0].UserID)
	assert.Equal(t, 12.0, userOrders[0].Total)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw[0], "userId")
	assert.Contains(t, raw[0], "createdAt")
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	handler := NewHandler(nil, nil, nil, nil, unhealthyStore{}, s.breakers, logger)
	rec = httptest.NewRecorder()
	handler.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCircuitBreakerRoutes(t *testing.T) {
	s := newTestServer(t)
	breaker := s.breakers.GetOrCreate("email")
	_ = breaker.Do(context.Background(), func(context.Context) error { return errors.New("boom") })
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	rec := s.do(http.MethodGet, "/circuit-breakers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshots []circuitbreaker.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 1)
	assert.Equal(t, "email", snapshots[0].Name)
	assert.Equal(t, "open", snapshots[0].State)

	rec = s.do(http.MethodPost, "/circuit-breakers/email/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())

	_ = breaker.Do(context.Background(), func(context.Context) error { return errors.New("boom") })
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())
	rec = s.do(http.MethodPost, "/circuit-breakers/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())

	rec = s.do(http.MethodPost, "/circuit-breakers/unknown/reset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/order", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = s.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSRestrictedOrigins(t *testing.T) {
	handler := corsMiddleware([]string{"https://shop.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	handler := recoverMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec))
}
