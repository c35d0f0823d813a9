package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"tenxcards-backend/internal/models"
)

type GenerationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) *GenerationRepo {
	return &GenerationRepo{pool: pool}
}

const generationColumns = `id, user_id, model, generated_count, accepted_unedited_count, accepted_edited_count,
	source_text_hash, source_text_length, generation_duration, created_at, updated_at`

func scanGeneration(row interface{ Scan(...any) error }, g *models.Generation) error {
	return row.Scan(
		&g.ID, &g.UserID, &g.Model, &g.GeneratedCount, &g.AcceptedUneditedCount, &g.AcceptedEditedCount,
		&g.SourceTextHash, &g.SourceTextLength, &g.GenerationDuration, &g.CreatedAt, &g.UpdatedAt,
	)
}

// Create inserts a generation with both accepted counters at zero and fills
// in the generated id and timestamps.
func (r *GenerationRepo) Create(ctx context.Context, g *models.Generation) error {
	query := `INSERT INTO generations (user_id, model, generated_count, accepted_unedited_count, accepted_edited_count,
			source_text_hash, source_text_length, generation_duration)
		VALUES ($1, $2, $3, 0, 0, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	g.AcceptedEditedCount = 0
	g.AcceptedUneditedCount = 0

	return r.pool.QueryRow(ctx, query,
		g.UserID, g.Model, g.GeneratedCount, g.SourceTextHash, g.SourceTextLength, g.GenerationDuration,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

func (r *GenerationRepo) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*models.Generation, error) {
	g := &models.Generation{}
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1 AND user_id = $2`

	if err := scanGeneration(r.pool.QueryRow(ctx, query, id, userID), g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GenerationRepo) ListByUser(ctx context.Context, userID uuid.UUID, p models.GenerationListParams) ([]*models.Generation, int, error) {
	orderBy := "created_at"
	if p.Sort == "updated_at" {
		orderBy = "updated_at"
	}
	direction := "DESC"
	if p.Order == "asc" {
		direction = "ASC"
	}

	var (
		total       int
		generations []*models.Generation
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.pool.QueryRow(gctx, "SELECT COUNT(*) FROM generations WHERE user_id = $1", userID).Scan(&total)
	})

	g.Go(func() error {
		query := fmt.Sprintf(`SELECT %s FROM generations WHERE user_id = $1 ORDER BY %s %s, id %s LIMIT $2 OFFSET $3`,
			generationColumns, orderBy, direction, direction)

		rows, err := r.pool.Query(gctx, query, userID, p.Limit, (p.Page-1)*p.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			gen := &models.Generation{}
			if err := scanGeneration(rows, gen); err != nil {
				return err
			}
			generations = append(generations, gen)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return generations, total, nil
}

// CountOwned returns how many of the given ids belong to the user.
func (r *GenerationRepo) CountOwned(ctx context.Context, userID uuid.UUID, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM generations WHERE user_id = $1 AND id = ANY($2)",
		userID, ids,
	).Scan(&n)
	return n, err
}
