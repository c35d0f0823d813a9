package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"tenxcards-backend/internal/models"
)

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

const flashcardColumns = `id, front, back, source, generation_id, user_id, created_at, updated_at`

func scanFlashcard(row interface{ Scan(...any) error }, c *models.Flashcard) error {
	return row.Scan(&c.ID, &c.Front, &c.Back, &c.Source, &c.GenerationID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
}

// CreateBatch inserts all cards in one transaction and bumps the accepted
// counters of every referenced generation. Either every card is stored or none.
func (r *FlashcardRepo) CreateBatch(ctx context.Context, userID uuid.UUID, cards []models.FlashcardCreate) ([]*models.Flashcard, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin flashcard batch: %w", err)
	}
	defer tx.Rollback(ctx)

	type counters struct{ edited, unedited int }
	accepted := make(map[int64]*counters)

	created := make([]*models.Flashcard, 0, len(cards))
	for _, in := range cards {
		c := &models.Flashcard{}
		err := scanFlashcard(tx.QueryRow(ctx,
			`INSERT INTO flashcards (front, back, source, generation_id, user_id)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+flashcardColumns,
			in.Front, in.Back, in.Source, in.GenerationID, userID,
		), c)
		if err != nil {
			return nil, fmt.Errorf("insert flashcard: %w", err)
		}
		created = append(created, c)

		if in.GenerationID == nil {
			continue
		}
		cnt, ok := accepted[*in.GenerationID]
		if !ok {
			cnt = &counters{}
			accepted[*in.GenerationID] = cnt
		}
		if in.Source == models.SourceAIEdited {
			cnt.edited++
		} else {
			cnt.unedited++
		}
	}

	for genID, cnt := range accepted {
		_, err := tx.Exec(ctx,
			`UPDATE generations
			 SET accepted_edited_count = accepted_edited_count + $1,
			     accepted_unedited_count = accepted_unedited_count + $2,
			     updated_at = NOW()
			 WHERE id = $3 AND user_id = $4`,
			cnt.edited, cnt.unedited, genID, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("update generation %d counters: %w", genID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit flashcard batch: %w", err)
	}
	return created, nil
}

func (r *FlashcardRepo) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*models.Flashcard, error) {
	c := &models.Flashcard{}
	query := `SELECT ` + flashcardColumns + ` FROM flashcards WHERE id = $1 AND user_id = $2`
	if err := scanFlashcard(r.pool.QueryRow(ctx, query, id, userID), c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *FlashcardRepo) ListByUser(ctx context.Context, userID uuid.UUID, p models.FlashcardListParams) ([]*models.Flashcard, int, error) {
	var args []interface{}
	argIdx := 1

	where := fmt.Sprintf("WHERE user_id = $%d", argIdx)
	args = append(args, userID)
	argIdx++

	if p.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, p.Source)
		argIdx++
	}
	if p.GenerationID != nil {
		where += fmt.Sprintf(" AND generation_id = $%d", argIdx)
		args = append(args, *p.GenerationID)
		argIdx++
	}

	orderBy := "created_at"
	switch p.Sort {
	case "updated_at", "front":
		orderBy = p.Sort
	}
	direction := "DESC"
	if p.Order == "asc" {
		direction = "ASC"
	}

	var (
		total int
		cards []*models.Flashcard
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.pool.QueryRow(gctx, "SELECT COUNT(*) FROM flashcards "+where, args...).Scan(&total)
	})

	g.Go(func() error {
		query := fmt.Sprintf(`SELECT %s FROM flashcards %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
			flashcardColumns, where, orderBy, direction, direction, argIdx, argIdx+1)
		pageArgs := append(append([]interface{}{}, args...), p.Limit, (p.Page-1)*p.Limit)

		rows, err := r.pool.Query(gctx, query, pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c := &models.Flashcard{}
			if err := scanFlashcard(rows, c); err != nil {
				return err
			}
			cards = append(cards, c)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

func (r *FlashcardRepo) ListByGeneration(ctx context.Context, userID uuid.UUID, generationID int64) ([]*models.Flashcard, error) {
	query := `SELECT ` + flashcardColumns + ` FROM flashcards
		WHERE user_id = $1 AND generation_id = $2 ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, userID, generationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []*models.Flashcard{}
	for rows.Next() {
		c := &models.Flashcard{}
		if err := scanFlashcard(rows, c); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// Update writes front, back and source. Returns pgx.ErrNoRows when the card
// does not exist for this user.
func (r *FlashcardRepo) Update(ctx context.Context, c *models.Flashcard) error {
	return r.pool.QueryRow(ctx,
		`UPDATE flashcards SET front = $1, back = $2, source = $3, updated_at = NOW()
		 WHERE id = $4 AND user_id = $5
		 RETURNING updated_at`,
		c.Front, c.Back, c.Source, c.ID, c.UserID,
	).Scan(&c.UpdatedAt)
}

func (r *FlashcardRepo) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM flashcards WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
