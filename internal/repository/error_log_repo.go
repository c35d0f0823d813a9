package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenxcards-backend/internal/models"
)

type ErrorLogRepo struct {
	pool *pgxpool.Pool
}

func NewErrorLogRepo(pool *pgxpool.Pool) *ErrorLogRepo {
	return &ErrorLogRepo{pool: pool}
}

func (r *ErrorLogRepo) Create(ctx context.Context, l *models.GenerationErrorLog) error {
	query := `INSERT INTO generation_error_logs
			(user_id, model, source_text_hash, source_text_length, error_code, error_message, error_stack)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		l.UserID, l.Model, l.SourceTextHash, l.SourceTextLength, l.ErrorCode, l.ErrorMessage, l.ErrorStack,
	).Scan(&l.ID, &l.CreatedAt)
}

// ListRecent returns the newest error logs, optionally scoped to one user.
func (r *ErrorLogRepo) ListRecent(ctx context.Context, userID *uuid.UUID, limit int) ([]*models.GenerationErrorLog, error) {
	query := `SELECT id, user_id, model, source_text_hash, source_text_length, error_code, error_message, error_stack, created_at
		FROM generation_error_logs`
	args := []interface{}{}
	if userID != nil {
		query += " WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2"
		args = append(args, *userID, limit)
	} else {
		query += " ORDER BY created_at DESC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.GenerationErrorLog
	for rows.Next() {
		l := &models.GenerationErrorLog{}
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Model, &l.SourceTextHash, &l.SourceTextLength,
			&l.ErrorCode, &l.ErrorMessage, &l.ErrorStack, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
