package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/infra/logging"
)

type initiateRequest struct {
	PlanType     string `json:"planType"`
	Provider     string `json:"provider"`
	BillingCycle string `json:"billingCycle"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// initiateHandler validates the purchase request and returns the provider
// redirect URL. End users never see provider error codes: rejections come
// back as a generic payment error, with detail only in the logs and audit
// trail.
func (s *Server) initiateHandler(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := UserID(r.Context())
	intent, err := s.checkout.Initiate(r.Context(), userID, req.PlanType, req.Provider, req.BillingCycle)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownPlan),
			errors.Is(err, domain.ErrUnknownBillingCycle),
			errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "payment error")
		case errors.Is(err, domain.ErrDowngradeNotAllowed):
			writeError(w, http.StatusConflict, "payment error")
		case errors.Is(err, domain.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, "payment error")
		default:
			logging.With(r.Context(), s.log).Error().Err(err).Msg("initiate failed")
			writeError(w, http.StatusInternalServerError, "payment error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(intent)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	payments, subs, err := s.checkout.History(r.Context(), userID)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("history failed")
		writeError(w, http.StatusInternalServerError, "payment error")
		return
	}

	response := struct {
		Payments      interface{} `json:"payments"`
		Subscriptions interface{} `json:"subscriptions"`
	}{
		Payments:      payments,
		Subscriptions: subs,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
