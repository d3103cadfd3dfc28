package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/bloqz/settle/service/db"
	"github.com/bloqz/settle/service/dispatch"
	"github.com/bloqz/settle/service/intent"
	"github.com/bloqz/settle/service/pipeline"
	"github.com/bloqz/settle/service/ramp"
	"github.com/bloqz/settle/service/request"
	"github.com/bloqz/settle/service/txbuild"
	"github.com/bloqz/settle/service/wallet"
)

const maxRequestBodySize = 1 << 20 // 1MB - plenty for any settlement payload

// submitIntentRequest is the body for POST /api/v1/intents.
type submitIntentRequest struct {
	UserID    string        `json:"user_id"`
	MessageID string        `json:"message_id"`
	Intent    intent.Intent `json:"intent"`
}

// settlementResponse is the wire form of a dispatch result.
type settlementResponse struct {
	Success      bool   `json:"success"`
	TxHash       string `json:"tx_hash,omitempty"`
	Network      string `json:"network"`
	Provider     string `json:"provider"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func resultToResponse(res *dispatch.Result) settlementResponse {
	return settlementResponse{
		Success:      res.Success,
		TxHash:       res.TxHash,
		Network:      res.Network,
		Provider:     string(res.Provider),
		ErrorKind:    string(res.ErrorKind),
		ErrorMessage: res.ErrorMessage,
	}
}

// handleSubmitIntent returns a handler that runs an intent through the
// settlement pipeline.
// POST /api/v1/intents
func handleSubmitIntent(pipe SettlementPipeline, snapshots SnapshotProvider, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitIntentRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			writeError(w, "user_id is required", http.StatusBadRequest)
			return
		}

		snap, err := snapshots.SnapshotFor(r.Context(), req.UserID)
		if err != nil {
			logger.Error("failed to load signing snapshot", "user_id", req.UserID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		res, err := pipe.Settle(r.Context(), &req.Intent, snap, req.MessageID)
		if err != nil {
			writeSettleError(w, logger, err)
			return
		}

		logger.Info("intent settled",
			"message_id", req.MessageID,
			"network", res.Network,
			"success", res.Success,
		)
		writeJSON(w, resultToResponse(res), http.StatusOK)
	})
}

// handleGetRecord returns a handler that fetches a settlement record with
// its enrichment.
// GET /api/v1/records/{message_id}
func handleGetRecord(pipe SettlementPipeline, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		messageID := r.PathValue("message_id")
		if messageID == "" {
			writeError(w, "message_id is required", http.StatusBadRequest)
			return
		}

		rec, err := pipe.GetEnrichedRecord(r.Context(), messageID)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "settlement record not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to fetch settlement record", "message_id", messageID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, rec, http.StatusOK)
	})
}

// handleAcceptRequest returns a handler that accepts (pays) a payment
// request.
// POST /api/v1/requests/{id}/accept
func handleAcceptRequest(requests RequestManager, snapshots SnapshotProvider, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.UserID == "" {
			writeError(w, "user_id is required", http.StatusBadRequest)
			return
		}

		snap, err := snapshots.SnapshotFor(r.Context(), body.UserID)
		if err != nil {
			logger.Error("failed to load signing snapshot", "user_id", body.UserID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		res, err := requests.Accept(r.Context(), id, snap)
		switch {
		case err != nil && res != nil:
			// Settlement succeeded but the status flip failed or lost a
			// race; the caller needs the hash either way.
			logger.Error("request accept partially failed", "request_id", id, "error", err)
			writeJSON(w, resultToResponse(res), http.StatusAccepted)
			return
		case errors.Is(err, request.ErrAlreadyProcessed):
			writeError(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, request.ErrSenderWalletMissing):
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		case err != nil:
			writeSettleError(w, logger, err)
			return
		}

		writeJSON(w, resultToResponse(res), http.StatusOK)
	})
}

// handleDeclineRequest returns a handler that declines a payment request.
// POST /api/v1/requests/{id}/decline
func handleDeclineRequest(requests RequestManager, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		err := requests.Decline(r.Context(), id)
		if errors.Is(err, request.ErrAlreadyProcessed) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			logger.Error("failed to decline payment request", "request_id", id, "error", err)
			writeError(w, "failed to decline request", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// handleRampEvent returns a handler for fiat ramp order webhooks.
// POST /api/v1/ramp/events
func handleRampEvent(rampIn RampEvents, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev ramp.OrderEvent
		if err := decodeBody(w, r, &ev); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := rampIn.HandleOrderEvent(r.Context(), &ev); err != nil {
			logger.Error("failed to handle ramp event",
				"order_id", ev.OrderID,
				"status", string(ev.Status),
				"error", err,
			)
			writeError(w, "failed to process ramp event", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	})
}

// handleRampWidget returns a handler that builds a hosted on-ramp widget URL.
// POST /api/v1/ramp/widget
func handleRampWidget(pipe SettlementPipeline, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params pipeline.RampParams
		if err := decodeBody(w, r, &params); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		u, err := pipe.OpenFiatRamp(params)
		if err != nil {
			logger.Error("failed to build ramp widget URL", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]string{"url": u}, http.StatusOK)
	})
}

// writeSettleError maps pipeline errors to HTTP statuses.
func writeSettleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, wallet.ErrNoProviderAvailable):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, txbuild.ErrMalformedIntent):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("settlement failed", "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
