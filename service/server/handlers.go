package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/brojonat/solhook/service/db"
	"github.com/brojonat/solhook/service/helius"
	"github.com/brojonat/solhook/service/ingest"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// processFunc is one of the WebhookProcessor methods.
type processFunc func(ctx context.Context, body []byte) (ingest.Result, error)

// handleWebhook returns a handler that feeds the request body to process.
// POST /webhooks/{kind}
// Responses are plain text: 200 when the delivery was handled (even if
// nothing qualified), 400 when the payload is unusable, 500 when the
// records could not be stored.
func handleWebhook(process processFunc, noDataMessage string, maxBodyBytes int64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(r, logger)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.Debug("webhook body too large", "limit", tooLarge.Limit)
				writeText(w, fmt.Sprintf("Invalid payload: request body exceeds %d bytes", tooLarge.Limit), http.StatusBadRequest)
				return
			}
			log.Debug("failed to read webhook body", "error", err)
			writeText(w, "Invalid payload: failed to read request body", http.StatusBadRequest)
			return
		}

		res, err := process(r.Context(), body)
		switch {
		case errors.Is(err, helius.ErrMalformedPayload):
			log.Debug("malformed webhook payload", "error", err)
			writeText(w, "Invalid payload: "+reason(err, helius.ErrMalformedPayload), http.StatusBadRequest)
		case errors.Is(err, helius.ErrIncompletePayload):
			log.Debug("incomplete webhook payload", "error", err)
			writeText(w, "Incomplete payload: "+reason(err, helius.ErrIncompletePayload), http.StatusBadRequest)
		case errors.Is(err, ingest.ErrPersistence):
			log.Error("webhook persistence failed", "kind", res.Kind, "error", err)
			writeText(w, "Webhook processing failed: "+reason(err, ingest.ErrPersistence), http.StatusInternalServerError)
		case err != nil:
			log.Error("webhook processing failed", "kind", res.Kind, "error", err)
			writeText(w, "Webhook processing failed: "+err.Error(), http.StatusInternalServerError)
		case res.Empty():
			log.Debug("webhook had no qualifying records", "kind", res.Kind, "rejected", res.Rejected, "skipped", res.Skipped)
			writeText(w, noDataMessage, http.StatusOK)
		default:
			log.Info("webhook processed",
				"kind", res.Kind,
				"notifications", res.Notifications,
				"records", res.Records,
				"rejected", res.Rejected,
				"skipped", res.Skipped,
			)
			writeText(w, "Webhook processed successfully!", http.StatusOK)
		}
	})
}

// reason strips the sentinel's own text from err so the response reads
// "Incomplete payload: signature is required" rather than repeating it.
func reason(err, sentinel error) string {
	return strings.Replace(err.Error(), sentinel.Error()+": ", "", 1)
}

// handleList returns a handler that lists records of one kind.
// GET /api/v1/{kind}?signature=SIG&address=ADDR&limit=N&offset=N
func handleList[T any](list func(context.Context, db.ListParams) ([]*T, error), field string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := parseListParams(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		records, err := list(r.Context(), params)
		if err != nil {
			requestLogger(r, logger).Error("failed to list records", "kind", field, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []*T{}
		}

		writeJSON(w, map[string]interface{}{
			field:    records,
			"count":  len(records),
			"limit":  params.Limit,
			"offset": params.Offset,
		}, http.StatusOK)
	})
}

// parseListParams reads filters and pagination (limit default 100, max 1000).
func parseListParams(r *http.Request) (db.ListParams, error) {
	query := r.URL.Query()
	params := db.ListParams{
		Signature: strings.TrimSpace(query.Get("signature")),
		Address:   strings.TrimSpace(query.Get("address")),
		Limit:     defaultListLimit,
	}

	if params.Address != "" {
		if err := helius.ValidateAddress("address", params.Address, false); err != nil {
			return params, errors.New(reason(err, helius.ErrIncompletePayload))
		}
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return params, errors.New("invalid limit parameter: must be an integer")
		}
		if limit < 1 {
			return params, errors.New("limit must be at least 1")
		}
		if limit > maxListLimit {
			return params, fmt.Errorf("limit cannot exceed %d", maxListLimit)
		}
		params.Limit = int32(limit)
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return params, errors.New("invalid offset parameter: must be an integer")
		}
		if offset < 0 {
			return params, errors.New("offset cannot be negative")
		}
		params.Offset = int32(offset)
	}

	return params, nil
}

// handleListTokens returns a handler that lists the recognized tokens.
// GET /api/v1/tokens
func handleListTokens(tokens *ingest.TokenTable) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		all := tokens.All()
		writeJSON(w, map[string]interface{}{
			"tokens": all,
			"count":  len(all),
		}, http.StatusOK)
	})
}

// writeText writes a plain-text response.
func writeText(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	io.WriteString(w, message)
}

// writeJSON writes a JSON response.
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
