package service

import (
	"context"

	"github.com/ekoval/pairbot/internal/directory"
	"github.com/ekoval/pairbot/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSelectionRepository mocks domain.SelectionRepository
type MockSelectionRepository struct {
	mock.Mock
}

func (m *MockSelectionRepository) Create(ctx context.Context, requesterID int64) (uuid.UUID, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockSelectionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Selection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Selection), args.Error(1)
}

func (m *MockSelectionRepository) GetActive(ctx context.Context, requesterID int64) (uuid.UUID, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockSelectionRepository) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *MockSelectionRepository) SetTarget(ctx context.Context, id uuid.UUID, targetID int64) error {
	args := m.Called(ctx, id, targetID)
	return args.Error(0)
}

func (m *MockSelectionRepository) SetTargetProfile(ctx context.Context, id uuid.UUID, profile domain.Profile) error {
	args := m.Called(ctx, id, profile)
	return args.Error(0)
}

func (m *MockSelectionRepository) SetResult(ctx context.Context, id uuid.UUID, resultID int64) error {
	args := m.Called(ctx, id, resultID)
	return args.Error(0)
}

func (m *MockSelectionRepository) AdvanceStage(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSelectionRepository) Close(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSelectionRepository) AppendShown(ctx context.Context, id uuid.UUID, candidateID int64) error {
	args := m.Called(ctx, id, candidateID)
	return args.Error(0)
}

func (m *MockSelectionRepository) ShownIDs(ctx context.Context, requesterID, targetID int64) ([]int64, error) {
	args := m.Called(ctx, requesterID, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// MockDirectoryClient mocks directory.Client
type MockDirectoryClient struct {
	mock.Mock
}

func (m *MockDirectoryClient) OpenSession(ctx context.Context, token string) (directory.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(directory.Session), args.Error(1)
}

// MockDirectorySession mocks directory.Session
type MockDirectorySession struct {
	mock.Mock
}

func (m *MockDirectorySession) LookupProfile(ctx context.Context, ident string, fields []string) (domain.Profile, error) {
	args := m.Called(ctx, ident, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *MockDirectorySession) SearchByText(ctx context.Context, query string) ([]directory.Person, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]directory.Person), args.Error(1)
}

func (m *MockDirectorySession) SearchByFilter(ctx context.Context, filter directory.SearchFilter) ([]directory.Person, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]directory.Person), args.Error(1)
}

func (m *MockDirectorySession) ListPhotos(ctx context.Context, ownerID int64) ([]directory.Photo, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]directory.Photo), args.Error(1)
}

func (m *MockDirectorySession) SendMessage(ctx context.Context, recipientID int64, text string, attachments []string) error {
	args := m.Called(ctx, recipientID, text, attachments)
	return args.Error(0)
}
