package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/service/customer"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/lifecycle"
)

const maxBodyBytes = 1 << 20

// Dependencies: сервисы, которые обслуживает HTTP API.
type Dependencies struct {
	Authenticator Authenticator
	Orders        *lifecycle.AuthorizedEngine
	Customers     *customer.Service
	Logger        *log.Entry
}

type handler struct {
	orders    *lifecycle.AuthorizedEngine
	customers *customer.Service
	logger    *log.Entry
}

// NewRouter собирает chi-роутер JSON API.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	h := &handler{orders: deps.Orders, customers: deps.Customers, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Post("/auth/login", h.login)
	r.Post("/api/customers", h.registerCustomer)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(deps.Authenticator, logger))

		r.Post("/auth/logout", h.logout)
		r.Get("/auth/verify", h.verify)

		r.Get("/api/customers", h.listCustomers)
		r.Route("/api/customers/{customerId}", func(r chi.Router) {
			r.Get("/", h.getCustomer)
			r.Put("/", h.updateCustomer)
			r.Delete("/", h.deleteCustomer)
			r.Put("/block", h.setCustomerActive(false))
			r.Put("/unblock", h.setCustomerActive(true))
		})

		r.Get("/api/roles/{customerId}", h.getRole)
		r.Post("/api/roles/{customerId}/promote", h.promote)

		r.Get("/api/orders", h.listOrders)
		r.Post("/api/orders/place/{customerId}", h.placeOrder)
		r.Route("/api/orders/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Put("/", h.updateOrder)
			r.Delete("/", h.deleteOrder)
			r.Get("/timeline", h.orderTimeline)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
	return r
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), nil)
		return false
	}
	return true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, "limit must be a non-negative integer", nil)
		return 0, false
	}
	return limit, true
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, "order id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
