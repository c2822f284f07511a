package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type orderRequest struct {
	Product  string `json:"product"`
	Quantity int32  `json:"quantity"`
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListAs(r.Context(), subject(r), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Orders fetched successfully.", toOrderResponses(orders))
}

func (h *handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orders.PlaceAs(r.Context(), subject(r), chi.URLParam(r, "customerId"), req.Product, req.Quantity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Order placed successfully.", toOrderResponse(order))
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetAs(r.Context(), subject(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Order fetched successfully.", toOrderResponse(order))
}

func (h *handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateAs(r.Context(), subject(r), id, req.Product, req.Quantity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Order updated successfully.", toOrderResponse(order))
}

func (h *handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	if err := h.orders.DeleteAs(r.Context(), subject(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Order deleted successfully.", nil)
}

func (h *handler) orderTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	events, err := h.orders.TimelineAs(r.Context(), subject(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result := make([]timelineResponse, 0, len(events))
	for _, e := range events {
		result = append(result, timelineResponse{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	writeJSON(w, http.StatusOK, "Timeline fetched successfully.", result)
}
