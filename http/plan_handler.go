package http

import (
	"encoding/json"
	"net/http"
	"time"

	"payment-agent/domain"
	"payment-agent/money"
	"payment-agent/service"
)

type PlanHandler struct {
	planner *service.PlannerService
}

func NewPlanHandler(planner *service.PlannerService) *PlanHandler {
	return &PlanHandler{planner: planner}
}

type planRequest struct {
	Bills   []domain.Bill `json:"bills"`
	Balance money.Money   `json:"balance"`
}

type planResponse struct {
	Strategy   domain.Strategy             `json:"strategy"`
	Comparison *domain.FinancingComparison `json:"comparison,omitempty"`
}

// ComputePlan exposes the decision engine directly, without a conversation.
func (h *PlanHandler) ComputePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	now := time.Now()
	strategy, err := h.planner.ComputeStrategy(req.Bills, req.Balance, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := planResponse{Strategy: strategy}
	if strategy.Kind != domain.FullBalance {
		comparison, err := h.planner.ComputeComparison(req.Bills, req.Balance, now)
		if err == nil {
			resp.Comparison = &comparison
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
