package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLabelNotFound is returned when a label lookup finds no row under the
// caller's ownership.
var ErrLabelNotFound = errors.New("label not found")

// ErrLabelNameTaken is returned on a unique-name violation for a user.
var ErrLabelNameTaken = errors.New("label name already exists for this user")

// ErrInvalidLabelInput is returned for malformed label attributes.
var ErrInvalidLabelInput = errors.New("invalid label input")

const labelColumns = "label_id, user_id, name, type, color, sort_order, created_at, updated_at"

// CreateLabel creates a custom label for the user. Name and color are
// required; the color must be #RRGGBB.
func CreateLabel(ctx context.Context, pool *pgxpool.Pool, userID, name, color string) (*models.Label, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidLabelInput)
	}
	if !colorPattern.MatchString(color) {
		return nil, fmt.Errorf("%w: color must be #RRGGBB", ErrInvalidLabelInput)
	}

	row := pool.QueryRow(ctx, `
		INSERT INTO labels (user_id, name, type, color)
		VALUES ($1, $2, 'custom', $3)
		RETURNING `+labelColumns, userID, name, color)

	label, err := scanLabel(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrLabelNameTaken
		}
		return nil, fmt.Errorf("failed to create label: %w", err)
	}

	return label, nil
}

// ListLabels returns all of the user's labels in sort order.
func ListLabels(ctx context.Context, pool *pgxpool.Pool, userID string) ([]*models.Label, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+labelColumns+`
		FROM labels
		WHERE user_id = $1
		ORDER BY sort_order, name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels: %w", err)
	}

	return labels, nil
}

// GetLabelByID returns one label under the caller's ownership.
func GetLabelByID(ctx context.Context, pool *pgxpool.Pool, userID string, labelID int64) (*models.Label, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+labelColumns+`
		FROM labels
		WHERE label_id = $1 AND user_id = $2
	`, labelID, userID)

	label, err := scanLabel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLabelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label: %w", err)
	}

	return label, nil
}

// UpdateLabel changes a label's name and/or color. At least one of the two
// must be given; nil leaves the attribute untouched.
func UpdateLabel(ctx context.Context, pool *pgxpool.Pool, userID string, labelID int64, name, color *string) (*models.Label, error) {
	if name == nil && color == nil {
		return nil, fmt.Errorf("%w: at least one of name or color is required", ErrInvalidLabelInput)
	}
	if name != nil && *name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidLabelInput)
	}
	if color != nil && !colorPattern.MatchString(*color) {
		return nil, fmt.Errorf("%w: color must be #RRGGBB", ErrInvalidLabelInput)
	}

	set := []string{"updated_at = now()"}
	args := []any{}
	if name != nil {
		args = append(args, *name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if color != nil {
		args = append(args, *color)
		set = append(set, fmt.Sprintf("color = $%d", len(args)))
	}
	args = append(args, labelID, userID)

	row := pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE labels
		SET %s
		WHERE label_id = $%d AND user_id = $%d
		RETURNING `+labelColumns,
		strings.Join(set, ", "), len(args)-1, len(args)), args...)

	label, err := scanLabel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLabelNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrLabelNameTaken
		}
		return nil, fmt.Errorf("failed to update label: %w", err)
	}

	return label, nil
}

// DeleteLabel permanently removes one label under the caller's ownership.
func DeleteLabel(ctx context.Context, pool *pgxpool.Pool, userID string, labelID int64) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM labels WHERE label_id = $1 AND user_id = $2
	`, labelID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLabelNotFound
	}

	return nil
}

func scanLabel(row pgx.Row) (*models.Label, error) {
	var l models.Label
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Type, &l.Color, &l.SortOrder, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
