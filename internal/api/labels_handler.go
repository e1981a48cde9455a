package api

import (
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/db"
)

// LabelsHandler serves the label CRUD endpoints.
type LabelsHandler struct {
	pool        *pgxpool.Pool
	development bool
}

// NewLabelsHandler creates a new LabelsHandler instance.
func NewLabelsHandler(pool *pgxpool.Pool, development bool) *LabelsHandler {
	return &LabelsHandler{pool: pool, development: development}
}

// ListLabels returns all of the user's labels in sort order.
func (h *LabelsHandler) ListLabels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	labels, err := db.ListLabels(ctx, h.pool, userID)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Labels fetched successfully", labels)
}

// CreateLabel creates a label. Name and color are required.
func (h *LabelsHandler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Color == "" {
		writeError(w, http.StatusBadRequest, "Name and color are required", nil)
		return
	}

	label, err := db.CreateLabel(ctx, h.pool, userID, req.Name, req.Color)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Label created successfully", label)
}

// GetLabel returns one label by id.
func (h *LabelsHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	labelID, ok := parseLabelID(w, r)
	if !ok {
		return
	}

	label, err := db.GetLabelByID(ctx, h.pool, userID, labelID)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Label fetched successfully", label)
}

// UpdateLabel changes a label's name and/or color.
func (h *LabelsHandler) UpdateLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	labelID, ok := parseLabelID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == nil && req.Color == nil {
		writeError(w, http.StatusBadRequest, "At least one of name or color is required", nil)
		return
	}

	label, err := db.UpdateLabel(ctx, h.pool, userID, labelID, req.Name, req.Color)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Label updated successfully", label)
}

// DeleteLabel permanently removes one label.
func (h *LabelsHandler) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	labelID, ok := parseLabelID(w, r)
	if !ok {
		return
	}

	if err := db.DeleteLabel(ctx, h.pool, userID, labelID); err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Label deleted successfully", nil)
}

func parseLabelID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	labelID, err := strconv.ParseInt(r.PathValue("labelID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid label id", nil)
		return 0, false
	}
	return labelID, true
}
