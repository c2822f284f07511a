package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

// Envelope: единый формат ответа API.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type orderResponse struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	Product    string    `json:"product"`
	Quantity   int32     `json:"quantity"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type customerResponse struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Email      string    `json:"email"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type roleResponse struct {
	CustomerID string `json:"customer_id"`
	Role       string `json:"role"`
}

type timelineResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toOrderResponse(order domain.Order) orderResponse {
	return orderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Product:    order.Product,
		Quantity:   order.Quantity,
		Status:     string(order.Status),
		Version:    order.Version,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order))
	}
	return result
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Username:   c.Username,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Active:     c.Active,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
}

// writeError переводит доменную ошибку в HTTP статус.
func writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		message = "internal error"
	}
	writeJSON(w, status, message, nil)
}

func statusFor(err error) int {
	switch {
	case auth.IsUnauthenticated(err), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrCustomerInactive):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCustomerExists), domain.IsVersionConflict(err):
		return http.StatusConflict
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIdentityProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
