package service

import (
	"context"
	"testing"
	"time"

	"github.com/ekoval/pairbot/internal/directory"
	"github.com/ekoval/pairbot/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var testFields = []string{"city", "bdate", "sex"}

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestDialog(repo *MockSelectionRepository, group *MockDirectorySession, client *MockDirectoryClient) *Dialog {
	return &Dialog{
		selections: repo,
		group:      group,
		client:     client,
		fields:     testFields,
		now:        func() time.Time { return testNow },
	}
}

func completeProfile() domain.Profile {
	return domain.Profile{
		"id":    float64(77),
		"city":  "Омск",
		"bdate": "01.01.1990",
		"sex":   float64(1),
	}
}

func TestDialog_NewRequesterGetsGreeting(t *testing.T) {
	repo := new(MockSelectionRepository)
	group := new(MockDirectorySession)
	client := new(MockDirectoryClient)
	svc := newTestDialog(repo, group, client)

	ctx := context.Background()
	id := uuid.New()

	repo.On("GetActive", ctx, int64(42)).Return(uuid.Nil, domain.ErrNotFound)
	repo.On("Create", ctx, int64(42)).Return(id, nil)
	repo.On("Get", ctx, id).Return(&domain.Selection{ID: id, RequesterID: 42, Stage: domain.StageGreeting}, nil)
	group.On("SendMessage", ctx, int64(42), msgGreeting, []string(nil)).Return(nil)
	repo.On("AdvanceStage", ctx, id).Return(nil)

	svc.HandleMessage(ctx, 42, "привет")

	repo.AssertExpectations(t)
	group.AssertExpectations(t)
}

func TestDialog_Consent(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	atStage1 := func() *domain.Selection {
		return &domain.Selection{ID: id, RequesterID: 42, Stage: domain.StageAwaitConsent}
	}

	t.Run("yes advances and asks for token", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		svc := newTestDialog(repo, group, new(MockDirectoryClient))

		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(atStage1(), nil)
		repo.On("AdvanceStage", ctx, id).Return(nil)
		group.On("SendMessage", ctx, int64(42), msgAskToken, []string(nil)).Return(nil)

		svc.HandleMessage(ctx, 42, "да")

		repo.AssertExpectations(t)
		group.AssertExpectations(t)
	})

	t.Run("no closes the selection", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		svc := newTestDialog(repo, group, new(MockDirectoryClient))

		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(atStage1(), nil)
		group.On("SendMessage", ctx, int64(42), msgClosed, []string(nil)).Return(nil)
		repo.On("Close", ctx, id).Return(nil)

		svc.HandleMessage(ctx, 42, "нет")

		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "AdvanceStage", ctx, id)
	})

	t.Run("anything else repeats the greeting in place", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		svc := newTestDialog(repo, group, new(MockDirectoryClient))

		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(atStage1(), nil)
		group.On("SendMessage", ctx, int64(42), msgGreeting, []string(nil)).Return(nil)

		svc.HandleMessage(ctx, 42, "возможно")

		repo.AssertNotCalled(t, "AdvanceStage", ctx, id)
		group.AssertExpectations(t)
	})
}

func TestDialog_TokenValidation(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	atStage2 := func() *domain.Selection {
		return &domain.Selection{ID: id, RequesterID: 42, Stage: domain.StageAwaitToken}
	}

	t.Run("valid token advances and asks for target", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		client := new(MockDirectoryClient)
		sess := new(MockDirectorySession)
		svc := newTestDialog(repo, group, client)

		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(atStage2(), nil)
		client.On("OpenSession", ctx, "user-token").Return(sess, nil)
		sess.On("LookupProfile", ctx, "42", []string(nil)).Return(domain.Profile{"id": float64(42)}, nil)
		repo.On("SetToken", ctx, id, "user-token").Return(nil)
		repo.On("AdvanceStage", ctx, id).Return(nil)
		group.On("SendMessage", ctx, int64(42), msgAskTarget, []string(nil)).Return(nil)

		svc.HandleMessage(ctx, 42, "user-token")

		repo.AssertExpectations(t)
		sess.AssertExpectations(t)
		group.AssertExpectations(t)
	})

	t.Run("rejected token re-prompts without advancing", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		client := new(MockDirectoryClient)
		svc := newTestDialog(repo, group, client)

		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(atStage2(), nil)
		client.On("OpenSession", ctx, "bad").Return(nil, directory.ErrAuth)
		group.On("SendMessage", ctx, int64(42), msgAskToken, []string(nil)).Return(nil)

		svc.HandleMessage(ctx, 42, "bad")

		repo.AssertNotCalled(t, "SetToken", ctx, id, "bad")
		repo.AssertNotCalled(t, "AdvanceStage", ctx, id)
		group.AssertExpectations(t)
	})

	t.Run("failed validation probe re-prompts", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		client := new(MockDirectoryClient)
		sess := new(MockDirectorySession)
		svc := newTestDialog(repo, group, client)

		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(atStage2(), nil)
		client.On("OpenSession", ctx, "expired").Return(sess, nil)
		sess.On("LookupProfile", ctx, "42", []string(nil)).Return(nil, directory.ErrAuth)
		group.On("SendMessage", ctx, int64(42), msgAskToken, []string(nil)).Return(nil)

		svc.HandleMessage(ctx, 42, "expired")

		repo.AssertNotCalled(t, "SetToken", ctx, id, "expired")
		group.AssertExpectations(t)
	})
}

// One inbound message carries the dialog from target resolution through the
// completeness check into search and the first offer.
func TestDialog_TargetResolutionCascadesToOffer(t *testing.T) {
	repo := new(MockSelectionRepository)
	group := new(MockDirectorySession)
	client := new(MockDirectoryClient)
	sess := new(MockDirectorySession)
	svc := newTestDialog(repo, group, client)

	ctx := context.Background()
	id := uuid.New()
	profile := completeProfile()

	base := domain.Selection{ID: id, RequesterID: 42, Token: "user-token"}
	atStage3 := base
	atStage3.Stage = domain.StageAwaitTarget
	atStage4 := base
	atStage4.Stage = domain.StageCollectFields
	atStage4.TargetID = 77
	atStage4.TargetProfile = profile
	atStage5 := atStage4
	atStage5.Stage = domain.StageSearch
	offered := atStage5
	offered.ResultID = 500

	repo.On("GetActive", ctx, int64(42)).Return(id, nil)
	repo.On("Get", ctx, id).Return(&atStage3, nil).Once()
	repo.On("Get", ctx, id).Return(&atStage4, nil).Once()
	repo.On("Get", ctx, id).Return(&atStage5, nil).Once()
	repo.On("Get", ctx, id).Return(&offered, nil).Once()

	client.On("OpenSession", ctx, "user-token").Return(sess, nil)

	// Stage 3: direct lookup misses, text search resolves the target.
	sess.On("LookupProfile", ctx, "Анна Иванова", testFields).Return(nil, directory.ErrNotFound)
	sess.On("SearchByText", ctx, "Анна Иванова").Return([]directory.Person{{ID: 77, FirstName: "Анна"}}, nil)
	sess.On("LookupProfile", ctx, "77", testFields).Return(profile, nil)
	repo.On("SetTarget", ctx, id, int64(77)).Return(nil)
	repo.On("SetTargetProfile", ctx, id, profile).Return(nil)
	group.On("SendMessage", ctx, int64(42), msgTargetFound+"https://vk.com/id77", []string(nil)).Return(nil)
	repo.On("AdvanceStage", ctx, id).Return(nil)

	// Stage 4: nothing missing, announce the search.
	group.On("SendMessage", ctx, int64(42), msgSearching, []string(nil)).Return(nil)

	// Stage 5: search, then offer.
	repo.On("ShownIDs", ctx, int64(42), int64(77)).Return([]int64{}, nil)
	sess.On("SearchByFilter", ctx, directory.SearchFilter{
		Hometown: "Омск",
		AgeFrom:  34,
		AgeTo:    34,
		Sex:      domain.SexMale,
		Status:   6,
	}).Return([]directory.Person{{ID: 500}, {ID: 501}}, nil)
	repo.On("SetResult", ctx, id, int64(500)).Return(nil)

	sess.On("ListPhotos", ctx, int64(500)).Return([]directory.Photo{
		{ID: 1, OwnerID: 500},
		{ID: 2, OwnerID: 500},
	}, nil)
	group.On("SendMessage", ctx, int64(42), msgPairFound+"https://vk.com/id500",
		[]string{"photo500_1", "photo500_2"}).Return(nil)
	repo.On("AppendShown", ctx, id, int64(500)).Return(nil)
	group.On("SendMessage", ctx, int64(42), msgAskContinue, []string(nil)).Return(nil)

	svc.HandleMessage(ctx, 42, "Анна Иванова")

	repo.AssertExpectations(t)
	sess.AssertExpectations(t)
	group.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "AdvanceStage", 2)
}

func TestDialog_ExhaustedSearchClosesSelection(t *testing.T) {
	repo := new(MockSelectionRepository)
	group := new(MockDirectorySession)
	client := new(MockDirectoryClient)
	sess := new(MockDirectorySession)
	svc := newTestDialog(repo, group, client)

	ctx := context.Background()
	id := uuid.New()

	searching := domain.Selection{
		ID: id, RequesterID: 42, Token: "user-token",
		TargetID: 77, TargetProfile: completeProfile(),
		Stage: domain.StageSearch,
	}
	exhausted := searching
	exhausted.ResultID = domain.ResultExhausted

	repo.On("GetActive", ctx, int64(42)).Return(id, nil)
	repo.On("Get", ctx, id).Return(&searching, nil).Once()
	repo.On("Get", ctx, id).Return(&exhausted, nil).Once()
	repo.On("ShownIDs", ctx, int64(42), int64(77)).Return([]int64{}, nil)

	client.On("OpenSession", ctx, "user-token").Return(sess, nil)
	sess.On("SearchByFilter", ctx, mock.AnythingOfType("directory.SearchFilter")).
		Return([]directory.Person{}, nil)
	repo.On("SetResult", ctx, id, domain.ResultExhausted).Return(nil)

	group.On("SendMessage", ctx, int64(42), msgNoPair, []string(nil)).Return(nil)
	group.On("SendMessage", ctx, int64(42), msgClosed, []string(nil)).Return(nil)
	repo.On("Close", ctx, id).Return(nil)

	svc.HandleMessage(ctx, 42, "да")

	repo.AssertExpectations(t)
	group.AssertExpectations(t)
}

func TestDialog_AlreadyShownCandidateTriggersNewSearch(t *testing.T) {
	repo := new(MockSelectionRepository)
	group := new(MockDirectorySession)
	client := new(MockDirectoryClient)
	sess := new(MockDirectorySession)
	svc := newTestDialog(repo, group, client)

	ctx := context.Background()
	id := uuid.New()

	shown := domain.Selection{
		ID: id, RequesterID: 42, Token: "user-token",
		TargetID: 77, TargetProfile: completeProfile(),
		Stage: domain.StageSearch, ResultID: 500,
	}
	fresh := shown
	fresh.ResultID = 501

	repo.On("GetActive", ctx, int64(42)).Return(id, nil)
	repo.On("Get", ctx, id).Return(&shown, nil).Once()
	repo.On("Get", ctx, id).Return(&fresh, nil).Once()
	repo.On("ShownIDs", ctx, int64(42), int64(77)).Return([]int64{500}, nil)

	client.On("OpenSession", ctx, "user-token").Return(sess, nil)
	sess.On("SearchByFilter", ctx, mock.AnythingOfType("directory.SearchFilter")).
		Return([]directory.Person{{ID: 500}, {ID: 501}}, nil)
	repo.On("SetResult", ctx, id, int64(501)).Return(nil)

	sess.On("ListPhotos", ctx, int64(501)).Return([]directory.Photo{{ID: 9, OwnerID: 501}}, nil)
	group.On("SendMessage", ctx, int64(42), msgPairFound+"https://vk.com/id501",
		[]string{"photo501_9"}).Return(nil)
	repo.On("AppendShown", ctx, id, int64(501)).Return(nil)
	group.On("SendMessage", ctx, int64(42), msgAskContinue, []string(nil)).Return(nil)

	svc.HandleMessage(ctx, 42, "да")

	repo.AssertExpectations(t)
	sess.AssertExpectations(t)
}

func TestDialog_DeclineAtSearchCloses(t *testing.T) {
	repo := new(MockSelectionRepository)
	group := new(MockDirectorySession)
	svc := newTestDialog(repo, group, new(MockDirectoryClient))

	ctx := context.Background()
	id := uuid.New()

	repo.On("GetActive", ctx, int64(42)).Return(id, nil)
	repo.On("Get", ctx, id).Return(&domain.Selection{
		ID: id, RequesterID: 42, Stage: domain.StageSearch,
		TargetID: 77, TargetProfile: completeProfile(), ResultID: 500,
	}, nil)
	group.On("SendMessage", ctx, int64(42), msgClosed, []string(nil)).Return(nil)
	repo.On("Close", ctx, id).Return(nil)

	svc.HandleMessage(ctx, 42, "Нет")

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "ShownIDs", ctx, int64(42), int64(77))
}

func TestDialog_MissingFieldCollection(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("prompts for the first missing field", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		svc := newTestDialog(repo, group, new(MockDirectoryClient))

		incomplete := domain.Profile{"id": float64(77), "sex": float64(1)}
		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(&domain.Selection{
			ID: id, RequesterID: 42, Token: "user-token",
			TargetID: 77, TargetProfile: incomplete,
			Stage: domain.StageCollectFields,
		}, nil)
		group.On("SendMessage", ctx, int64(42), msgAskData+"city", []string(nil)).Return(nil)

		svc.HandleMessage(ctx, 42, "")

		group.AssertExpectations(t)
	})

	t.Run("stores the answer and moves to the next gap", func(t *testing.T) {
		repo := new(MockSelectionRepository)
		group := new(MockDirectorySession)
		svc := newTestDialog(repo, group, new(MockDirectoryClient))

		first := domain.Selection{
			ID: id, RequesterID: 42, Token: "user-token",
			TargetID: 77, TargetProfile: domain.Profile{"id": float64(77), "sex": float64(1)},
			Stage: domain.StageCollectFields,
		}
		second := first
		second.TargetProfile = domain.Profile{"id": float64(77), "sex": float64(1), "city": "Омск"}

		repo.On("GetActive", ctx, int64(42)).Return(id, nil)
		repo.On("Get", ctx, id).Return(&first, nil).Once()
		repo.On("Get", ctx, id).Return(&second, nil).Once()
		repo.On("SetTargetProfile", ctx, id, mock.AnythingOfType("domain.Profile")).Return(nil)
		group.On("SendMessage", ctx, int64(42), msgAskData+"bdate", []string(nil)).Return(nil)

		svc.HandleMessage(ctx, 42, "Омск")

		repo.AssertExpectations(t)
		group.AssertExpectations(t)
	})
}
