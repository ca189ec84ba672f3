package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ekoval/pairbot/internal/domain"
	"github.com/google/uuid"
)

// SelectionRepository implements domain.SelectionRepository on SQLite.
type SelectionRepository struct {
	db *sql.DB
}

// NewSelectionRepository creates a new selection repository.
func NewSelectionRepository(db *sql.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

func (r *SelectionRepository) Create(ctx context.Context, requesterID int64) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UnixNano()
	query := `
		INSERT INTO selections (id, requester_id, stage, created_at, updated_at, closed)
		VALUES (?, ?, ?, ?, ?, 0)
	`
	_, err := r.db.ExecContext(ctx, query, id.String(), requesterID, domain.StageGreeting, now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create selection: %w", err)
	}
	return id, nil
}

func (r *SelectionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Selection, error) {
	query := `
		SELECT id, requester_id, token, target_id, target_profile, stage,
		       created_at, updated_at, closed_at, closed, result_id
		FROM selections
		WHERE id = ?
	`
	var (
		s         domain.Selection
		rawID     string
		profile   string
		createdAt int64
		updatedAt int64
		closedAt  sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(
		&rawID,
		&s.RequesterID,
		&s.Token,
		&s.TargetID,
		&profile,
		&s.Stage,
		&createdAt,
		&updatedAt,
		&closedAt,
		&s.Closed,
		&s.ResultID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}

	s.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt selection id %q: %w", rawID, err)
	}
	s.CreatedAt = time.Unix(0, createdAt)
	s.UpdatedAt = time.Unix(0, updatedAt)
	if closedAt.Valid {
		t := time.Unix(0, closedAt.Int64)
		s.ClosedAt = &t
	}
	if profile != "" {
		if err := json.Unmarshal([]byte(profile), &s.TargetProfile); err != nil {
			return nil, fmt.Errorf("corrupt target profile: %w", err)
		}
	}
	return &s, nil
}

func (r *SelectionRepository) GetActive(ctx context.Context, requesterID int64) (uuid.UUID, error) {
	query := `SELECT id FROM selections WHERE requester_id = ? AND closed = 0 LIMIT 1`
	var rawID string
	err := r.db.QueryRowContext(ctx, query, requesterID).Scan(&rawID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get active selection: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt selection id %q: %w", rawID, err)
	}
	return id, nil
}

func (r *SelectionRepository) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	return r.update(ctx, id, "token", token)
}

func (r *SelectionRepository) SetTarget(ctx context.Context, id uuid.UUID, targetID int64) error {
	return r.update(ctx, id, "target_id", targetID)
}

func (r *SelectionRepository) SetTargetProfile(ctx context.Context, id uuid.UUID, profile domain.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal target profile: %w", err)
	}
	return r.update(ctx, id, "target_profile", string(data))
}

func (r *SelectionRepository) SetResult(ctx context.Context, id uuid.UUID, resultID int64) error {
	return r.update(ctx, id, "result_id", resultID)
}

func (r *SelectionRepository) AdvanceStage(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE selections SET stage = stage + 1, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, time.Now().UnixNano(), id.String())
}

func (r *SelectionRepository) Close(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UnixNano()
	query := `UPDATE selections SET closed = 1, closed_at = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, query, now, now, id.String())
}

// AppendShown records a candidate into the (requester, target) ledger. The
// ledger is append-only and survives the selection it was written from.
func (r *SelectionRepository) AppendShown(ctx context.Context, id uuid.UUID, candidateID int64) error {
	sel, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO shown_candidates (requester_id, target_id, candidate_id, shown_at)
		VALUES (?, ?, ?, ?)
	`
	return r.exec(ctx, query, sel.RequesterID, sel.TargetID, candidateID, time.Now().UnixNano())
}

func (r *SelectionRepository) ShownIDs(ctx context.Context, requesterID, targetID int64) ([]int64, error) {
	query := `
		SELECT candidate_id FROM shown_candidates
		WHERE requester_id = ? AND target_id = ?
		ORDER BY rowid
	`
	rows, err := r.db.QueryContext(ctx, query, requesterID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shown candidates: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SelectionRepository) update(ctx context.Context, id uuid.UUID, column string, value any) error {
	query := fmt.Sprintf(`UPDATE selections SET %s = ?, updated_at = ? WHERE id = ?`, column)
	return r.exec(ctx, query, value, time.Now().UnixNano(), id.String())
}

func (r *SelectionRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update selection: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
