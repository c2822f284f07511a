package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/simpleshop/internal/service/customer"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token      string `json:"token"`
	TokenType  string `json:"token_type"`
	CustomerID string `json:"customer_id"`
}

type registerRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, c, err := h.customers.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Login successful.", loginResponse{
		Token:      token,
		TokenType:  "Bearer",
		CustomerID: c.CustomerID,
	})
}

// logout не хранит состояния: токен просто перестаёт использоваться клиентом.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	h.logger.WithField("customer_id", subject(r)).Info("customer logged out")
	writeJSON(w, http.StatusOK, "Logged out successfully.", nil)
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "Token is valid.", map[string]string{"customer_id": subject(r)})
}

func (h *handler) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.customers.Register(r.Context(), customer.RegisterInput(req))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Customer created successfully.", toCustomerResponse(created))
}
