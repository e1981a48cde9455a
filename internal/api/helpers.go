package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/auth"
	"github.com/abysfin/webmail/backend/internal/db"
)

// GetUserFromContext extracts the caller's email from context and resolves or
// creates the DB user, writing the HTTP error itself when that fails.
// Returns (userID, email, true) on success.
func GetUserFromContext(ctx context.Context, w http.ResponseWriter, pool *pgxpool.Pool) (string, string, bool) {
	email, ok := auth.GetUserEmailFromContext(ctx)
	if !ok {
		log.Println("API: No user email in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", "", false
	}

	userID, err := db.GetOrCreateUser(ctx, pool, email)
	if err != nil {
		log.Printf("API: Failed to get/create user: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return "", "", false
	}

	return userID, email, true
}

// ParsePaginationParams parses page and limit from query parameters, falling
// back to page=1 and the given default limit.
func ParsePaginationParams(r *http.Request, defaultLimit int) (page, limit int) {
	page = 1
	limit = defaultLimit

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	return page, limit
}

// successResponse is the envelope for every successful JSON response.
type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// errorResponse is the envelope for error responses. Details are only
// populated outside production.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successResponse{Success: true, Message: message, Data: data}); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message, Details: details}); err != nil {
		log.Printf("API: Failed to encode error response: %v", err)
	}
}

// respondDBError translates db-layer errors to HTTP responses. Missing-id
// details on batch rejections are always included so callers can see which
// ids failed; internal error detail is withheld in production.
func respondDBError(w http.ResponseWriter, development bool, err error) {
	var missing *db.MissingIDsError
	if errors.As(err, &missing) {
		writeError(w, http.StatusNotFound, "Some items were not found", map[string]any{
			"kind":       missing.Kind,
			"missingIds": missing.IDs,
		})
		return
	}

	switch {
	case errors.Is(err, db.ErrMessageNotFound),
		errors.Is(err, db.ErrThreadNotFound),
		errors.Is(err, db.ErrFolderNotFound),
		errors.Is(err, db.ErrDraftNotFound),
		errors.Is(err, db.ErrLabelNotFound),
		errors.Is(err, db.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, db.ErrFolderNotCustom):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, db.ErrInvalidFolderInput), errors.Is(err, db.ErrFolderNameTaken),
		errors.Is(err, db.ErrInvalidLabelInput), errors.Is(err, db.ErrLabelNameTaken):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		// ErrFolderNotConfigured and ErrDestinationFoldersMissing land here:
		// provisioning defects, surfaced as server errors.
		log.Printf("API: Internal error: %v", err)
		var details any
		if development {
			details = err.Error()
		}
		writeError(w, http.StatusInternalServerError, "Internal server error", details)
	}
}

// decodeJSONBody decodes the request body into dst, writing a 400 on failure.
// Returns false when the response has already been written.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return false
	}
	return true
}
