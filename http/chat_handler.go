package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"payment-agent/domain"
	"payment-agent/service"
)

type ChatHandler struct {
	chatbot  *service.ChatbotService
	intents  *service.IntentService
	renderer *service.RendererService
	userName string
	log      *logrus.Logger
}

func NewChatHandler(
	chatbot *service.ChatbotService,
	intents *service.IntentService,
	renderer *service.RendererService,
	userName string,
	log *logrus.Logger,
) *ChatHandler {
	return &ChatHandler{
		chatbot:  chatbot,
		intents:  intents,
		renderer: renderer,
		userName: userName,
		log:      log,
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string           `json:"session_id"`
	Response  string           `json:"response"`
	State     domain.ChatState `json:"state"`
	Balance   string           `json:"balance"`
}

// HandleMessage runs one conversation turn: classify, advance the state
// machine, render the reply and record the exchange.
func (h *ChatHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = h.chatbot.NewSessionID()
	}

	state := h.chatbot.CurrentState(req.SessionID)
	classification := h.intents.Classify(r.Context(), req.Message, state)

	rc, nextState, err := h.chatbot.HandleTurn(req.SessionID, classification.Intent, classification.Params)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecoverableInput), errors.Is(err, domain.ErrValidation):
			// Recoverable: answer normally with a clarifying reply.
			if rc.Kind == "" {
				rc = domain.ResponseContext{
					Kind:     domain.ResponseGuidance,
					Balance:  rc.Balance,
					Guidance: "não consegui processar: " + err.Error(),
				}
			}
		case errors.Is(err, domain.ErrCollaborator):
			h.log.WithFields(logrus.Fields{
				"session": req.SessionID,
				"intent":  classification.Intent,
			}).Warnf("collaborator failure: %v", err)
			rc = domain.ResponseContext{Kind: domain.ResponseError, Balance: rc.Balance}
		default:
			h.log.WithField("session", req.SessionID).Errorf("turn failed: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	text := h.renderer.Render(r.Context(), h.userName, rc)
	h.chatbot.RecordExchange(req.SessionID, req.Message, text)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		SessionID: req.SessionID,
		Response:  text,
		State:     nextState,
		Balance:   rc.Balance.FormatWithSymbol(),
	})
}

type historyResponse struct {
	SessionID string                `json:"session_id"`
	Balance   string                `json:"balance"`
	History   []domain.HistoryEntry `json:"history"`
}

// HandleHistory returns the session transcript and current balance.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	history, balance, err := h.chatbot.History(sessionID)
	if err != nil {
		h.log.WithField("session", sessionID).Errorf("history lookup failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []domain.HistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(historyResponse{
		SessionID: sessionID,
		Balance:   balance.FormatWithSymbol(),
		History:   history,
	})
}
