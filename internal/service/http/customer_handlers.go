package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/customer"
)

type updateCustomerRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	customers, err := h.customers.ListAs(r.Context(), subject(r), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		result = append(result, toCustomerResponse(c))
	}
	message := "Customer data fetched successfully."
	if len(result) == 0 {
		message = "No customers found."
	}
	writeJSON(w, http.StatusOK, message, result)
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.GetAs(r.Context(), subject(r), chi.URLParam(r, "customerId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Customer data fetched successfully.", toCustomerResponse(c))
}

func (h *handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var req updateCustomerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.customers.UpdateAs(r.Context(), subject(r), chi.URLParam(r, "customerId"), customer.UpdateInput(req))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Customer updated successfully.", toCustomerResponse(updated))
}

func (h *handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.customers.DeleteAs(r.Context(), subject(r), chi.URLParam(r, "customerId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Customer deleted successfully.", nil)
}

func (h *handler) setCustomerActive(active bool) http.HandlerFunc {
	message := "Customer blocked."
	if active {
		message = "Customer unblocked."
	}
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.customers.SetActiveAs(r.Context(), subject(r), chi.URLParam(r, "customerId"), active)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, message, toCustomerResponse(c))
	}
}

func (h *handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.customers.RoleAs(r.Context(), subject(r), chi.URLParam(r, "customerId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Role fetched successfully.", toRoleResponse(role))
}

func (h *handler) promote(w http.ResponseWriter, r *http.Request) {
	role, err := h.customers.PromoteAs(r.Context(), subject(r), chi.URLParam(r, "customerId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Customer promoted to ADMIN.", toRoleResponse(role))
}

func toRoleResponse(role domain.Role) roleResponse {
	return roleResponse{CustomerID: role.CustomerID, Role: string(role.Name)}
}
