package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dialog stages, in the order a selection walks through them.
const (
	StageGreeting = iota
	StageAwaitConsent
	StageAwaitToken
	StageAwaitTarget
	StageCollectFields
	StageSearch
)

// Sentinel values for Selection.ResultID.
const (
	ResultNone      int64 = 0  // no candidate proposed yet
	ResultExhausted int64 = -1 // search ran and found nobody new
)

// Selection is one matchmaking attempt for a requester.
type Selection struct {
	ID            uuid.UUID  `json:"id"`
	RequesterID   int64      `json:"requester_id"`
	Token         string     `json:"-"`
	TargetID      int64      `json:"target_id"`
	TargetProfile Profile    `json:"target_profile,omitempty"`
	Stage         int        `json:"stage"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Closed        bool       `json:"closed"`
	ResultID      int64      `json:"result_id"`
}

// SelectionRepository defines the interface for selection storage.
// At most one non-closed selection exists per requester; every mutation
// bumps UpdatedAt. The shown-candidate ledger is keyed by the
// (requester, target) pair, append-only and cumulative across selections.
type SelectionRepository interface {
	Create(ctx context.Context, requesterID int64) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*Selection, error)
	GetActive(ctx context.Context, requesterID int64) (uuid.UUID, error)
	SetToken(ctx context.Context, id uuid.UUID, token string) error
	SetTarget(ctx context.Context, id uuid.UUID, targetID int64) error
	SetTargetProfile(ctx context.Context, id uuid.UUID, profile Profile) error
	SetResult(ctx context.Context, id uuid.UUID, resultID int64) error
	AdvanceStage(ctx context.Context, id uuid.UUID) error
	Close(ctx context.Context, id uuid.UUID) error
	AppendShown(ctx context.Context, id uuid.UUID, candidateID int64) error
	ShownIDs(ctx context.Context, requesterID, targetID int64) ([]int64, error)
}
