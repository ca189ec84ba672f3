package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ekoval/pairbot/internal/directory"
	"github.com/ekoval/pairbot/internal/domain"
	"github.com/ekoval/pairbot/internal/match"
	"github.com/ekoval/pairbot/internal/repository/redis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Dialog prompts, in the bot's voice.
const (
	msgGreeting    = "Я бот подбора партнера. Приступим к подбору?(да/нет)"
	msgAskToken    = "Введите токен пользователя VK от имени которого будет производиться подбор."
	msgAskTarget   = "Введите имя пользователя или его id в ВК, для которого мы ищем пару."
	msgTargetFound = "Целевой пользователь найден!\n"
	msgSearching   = "Поиск пары"
	msgAskData     = "Для подбора не хватает данных. Введите "
	msgPairFound   = "Подобрана пара:\n"
	msgAskContinue = "Искать дальше?(да/нет)"
	msgNoPair      = "К сожалению, не удалось подобрать пару."
	msgClosed      = "Подбор завершен. Спасибо."

	answerYes = "да"
	answerNo  = "нет"
)

// maxStageHops bounds the in-process stage cascade so a transition bug in a
// future stage cannot loop forever.
const maxStageHops = 8

type outcome int

const (
	awaitInput outcome = iota // stay put until the next inbound message
	runNext                   // re-dispatch the current stage ladder in-process
	terminal                  // selection closed
)

// Dialog is the stage machine that drives one matchmaking conversation per
// inbound message. It holds no per-conversation state; everything is
// reloaded from the selection repository on every event.
type Dialog struct {
	selections domain.SelectionRepository
	group      directory.Session
	client     directory.Client
	cache      *redis.ProfileCache
	fields     []string
	now        func() time.Time
}

// NewDialog creates the dialog service. cache may be nil to disable profile
// caching.
func NewDialog(
	selections domain.SelectionRepository,
	group directory.Session,
	client directory.Client,
	cache *redis.ProfileCache,
	fields []string,
) *Dialog {
	return &Dialog{
		selections: selections,
		group:      group,
		client:     client,
		cache:      cache,
		fields:     fields,
		now:        time.Now,
	}
}

// HandleMessage processes one inbound message from a requester: it loads or
// creates the active selection and walks the stage machine until a stage
// needs more input or the selection closes. Errors never escape; failed
// events are logged and left for the next message to retry.
func (d *Dialog) HandleMessage(ctx context.Context, requesterID int64, text string) {
	logger := log.With().Int64("requester_id", requesterID).Logger()

	id, err := d.selections.GetActive(ctx, requesterID)
	if errors.Is(err, domain.ErrNotFound) {
		id, err = d.selections.Create(ctx, requesterID)
		if err == nil {
			logger.Info().Str("selection_id", id.String()).Msg("started new selection")
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to load or create selection")
		return
	}

	msg := strings.TrimSpace(text)
	for hop := 0; hop < maxStageHops; hop++ {
		sel, err := d.selections.Get(ctx, id)
		if err != nil {
			logger.Error().Err(err).Msg("failed to reload selection")
			return
		}
		stageLogger := logger.With().Str("selection_id", id.String()).Int("stage", sel.Stage).Logger()
		if d.dispatch(ctx, &stageLogger, sel, msg) != runNext {
			return
		}
		// Cascaded stages run without the inbound message.
		msg = ""
	}
	logger.Warn().Str("selection_id", id.String()).Msg("stage cascade hit hop limit")
}

func (d *Dialog) dispatch(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection, msg string) outcome {
	switch sel.Stage {
	case domain.StageGreeting:
		return d.stageGreeting(ctx, logger, sel)
	case domain.StageAwaitConsent:
		return d.stageAwaitConsent(ctx, logger, sel, msg)
	case domain.StageAwaitToken:
		return d.stageAwaitToken(ctx, logger, sel, msg)
	case domain.StageAwaitTarget:
		return d.stageAwaitTarget(ctx, logger, sel, msg)
	case domain.StageCollectFields:
		return d.stageCollectFields(ctx, logger, sel, msg)
	case domain.StageSearch:
		return d.stageSearch(ctx, logger, sel, msg)
	default:
		logger.Error().Msg("unknown stage")
		return awaitInput
	}
}

func (d *Dialog) stageGreeting(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection) outcome {
	d.say(ctx, logger, sel.RequesterID, msgGreeting, nil)
	if err := d.selections.AdvanceStage(ctx, sel.ID); err != nil {
		logger.Error().Err(err).Msg("failed to advance stage")
	}
	return awaitInput
}

func (d *Dialog) stageAwaitConsent(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection, msg string) outcome {
	switch strings.ToLower(msg) {
	case answerYes:
		if err := d.selections.AdvanceStage(ctx, sel.ID); err != nil {
			logger.Error().Err(err).Msg("failed to advance stage")
			return awaitInput
		}
		d.say(ctx, logger, sel.RequesterID, msgAskToken, nil)
		return awaitInput
	case answerNo:
		return d.closeSelection(ctx, logger, sel)
	default:
		d.say(ctx, logger, sel.RequesterID, msgGreeting, nil)
		return awaitInput
	}
}

func (d *Dialog) stageAwaitToken(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection, msg string) outcome {
	if msg == "" {
		d.say(ctx, logger, sel.RequesterID, msgAskToken, nil)
		return awaitInput
	}

	// Any failure here, auth or otherwise, means the same thing to the
	// requester: enter the token again.
	sess, err := d.client.OpenSession(ctx, msg)
	if err == nil {
		_, err = sess.LookupProfile(ctx, strconv.FormatInt(sel.RequesterID, 10), nil)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("token validation failed")
		d.say(ctx, logger, sel.RequesterID, msgAskToken, nil)
		return awaitInput
	}

	if err := d.selections.SetToken(ctx, sel.ID, msg); err != nil {
		logger.Error().Err(err).Msg("failed to store token")
		return awaitInput
	}
	if err := d.selections.AdvanceStage(ctx, sel.ID); err != nil {
		logger.Error().Err(err).Msg("failed to advance stage")
		return awaitInput
	}
	d.say(ctx, logger, sel.RequesterID, msgAskTarget, nil)
	return awaitInput
}

func (d *Dialog) stageAwaitTarget(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection, msg string) outcome {
	if msg == "" {
		d.say(ctx, logger, sel.RequesterID, msgAskTarget, nil)
		return awaitInput
	}

	sess, err := d.userSession(ctx, sel)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open delegated session")
		d.say(ctx, logger, sel.RequesterID, msgAskTarget, nil)
		return awaitInput
	}

	profile, err := d.resolveTarget(ctx, sess, msg)
	if err != nil || profile.ID() == 0 {
		logger.Warn().Err(err).Str("query", msg).Msg("target not found")
		d.say(ctx, logger, sel.RequesterID, msgAskTarget, nil)
		return awaitInput
	}

	targetID := profile.ID()
	if err := d.selections.SetTarget(ctx, sel.ID, targetID); err != nil {
		logger.Error().Err(err).Msg("failed to store target")
		return awaitInput
	}
	if err := d.selections.SetTargetProfile(ctx, sel.ID, profile); err != nil {
		logger.Error().Err(err).Msg("failed to store target profile")
		return awaitInput
	}
	d.cacheProfile(ctx, logger, targetID, profile)

	d.say(ctx, logger, sel.RequesterID, msgTargetFound+directory.ProfileLink(targetID), nil)
	if err := d.selections.AdvanceStage(ctx, sel.ID); err != nil {
		logger.Error().Err(err).Msg("failed to advance stage")
		return awaitInput
	}
	logger.Info().Int64("target_id", targetID).Msg("target resolved")
	return runNext
}

func (d *Dialog) stageCollectFields(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection, msg string) outcome {
	if err := d.ensureProfile(ctx, logger, sel); err != nil {
		logger.Error().Err(err).Msg("failed to restore target profile")
		return awaitInput
	}

	missing := sel.TargetProfile.MissingFields(d.fields)
	if len(missing) == 0 {
		if err := d.selections.AdvanceStage(ctx, sel.ID); err != nil {
			logger.Error().Err(err).Msg("failed to advance stage")
			return awaitInput
		}
		d.say(ctx, logger, sel.RequesterID, msgSearching, nil)
		return runNext
	}

	if msg == "" {
		d.say(ctx, logger, sel.RequesterID, msgAskData+missing[0], nil)
		return awaitInput
	}

	sel.TargetProfile.SetField(missing[0], msg)
	if err := d.selections.SetTargetProfile(ctx, sel.ID, sel.TargetProfile); err != nil {
		logger.Error().Err(err).Msg("failed to store target profile")
		return awaitInput
	}
	d.cacheProfile(ctx, logger, sel.TargetID, sel.TargetProfile)
	return runNext
}

func (d *Dialog) stageSearch(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection, msg string) outcome {
	if strings.ToLower(msg) == answerNo {
		return d.closeSelection(ctx, logger, sel)
	}

	shown, err := d.selections.ShownIDs(ctx, sel.RequesterID, sel.TargetID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load shown ledger")
		return awaitInput
	}

	// A candidate already in the ledger is no longer pending; both that
	// and "nothing proposed yet" trigger a fresh search.
	if sel.ResultID == domain.ResultNone || containsID(shown, sel.ResultID) {
		return d.searchCandidate(ctx, logger, sel, shown)
	}

	if sel.ResultID == domain.ResultExhausted {
		d.say(ctx, logger, sel.RequesterID, msgNoPair, nil)
		return d.closeSelection(ctx, logger, sel)
	}

	return d.offerCandidate(ctx, logger, sel)
}

func (d *Dialog) searchCandidate(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection, shown []int64) outcome {
	if err := d.ensureProfile(ctx, logger, sel); err != nil {
		logger.Error().Err(err).Msg("failed to restore target profile")
		return awaitInput
	}

	filter, err := match.BuildFilter(sel.TargetProfile, d.now())
	if err != nil {
		// The profile passed stage 4, so this is a stored-data bug, not
		// user input to re-request.
		logger.Error().Err(err).Msg("failed to derive search filter")
		d.say(ctx, logger, sel.RequesterID, msgNoPair, nil)
		return d.closeSelection(ctx, logger, sel)
	}

	sess, err := d.userSession(ctx, sel)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open delegated session")
		d.say(ctx, logger, sel.RequesterID, msgAskContinue, nil)
		return awaitInput
	}

	results, err := sess.SearchByFilter(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msg("people search failed")
		d.say(ctx, logger, sel.RequesterID, msgAskContinue, nil)
		return awaitInput
	}

	candidateID := match.PickCandidate(results, shown)
	if err := d.selections.SetResult(ctx, sel.ID, candidateID); err != nil {
		logger.Error().Err(err).Msg("failed to store candidate")
		return awaitInput
	}
	logger.Info().Int64("candidate_id", candidateID).Int("results", len(results)).Msg("candidate selected")
	return runNext
}

func (d *Dialog) offerCandidate(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection) outcome {
	var attachments []string
	if sess, err := d.userSession(ctx, sel); err == nil {
		photos, perr := sess.ListPhotos(ctx, sel.ResultID)
		if perr != nil {
			logger.Warn().Err(perr).Msg("failed to fetch candidate photos")
		} else {
			attachments = match.AttachmentRefs(match.TopPhotos(photos))
		}
	} else {
		logger.Warn().Err(err).Msg("failed to open delegated session for photos")
	}

	d.say(ctx, logger, sel.RequesterID, msgPairFound+directory.ProfileLink(sel.ResultID), attachments)
	if err := d.selections.AppendShown(ctx, sel.ID, sel.ResultID); err != nil {
		logger.Error().Err(err).Msg("failed to append shown candidate")
	}
	d.say(ctx, logger, sel.RequesterID, msgAskContinue, nil)
	logger.Info().Int64("candidate_id", sel.ResultID).Msg("candidate offered")
	return awaitInput
}

func (d *Dialog) closeSelection(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection) outcome {
	d.say(ctx, logger, sel.RequesterID, msgClosed, nil)
	if err := d.selections.Close(ctx, sel.ID); err != nil {
		logger.Error().Err(err).Msg("failed to close selection")
	} else {
		logger.Info().Msg("selection closed")
	}
	return terminal
}

// resolveTarget tries a direct profile lookup first, then falls back to a
// free-text search taking the first hit.
func (d *Dialog) resolveTarget(ctx context.Context, sess directory.Session, query string) (domain.Profile, error) {
	profile, err := sess.LookupProfile(ctx, query, d.fields)
	if err == nil {
		return profile, nil
	}
	people, serr := sess.SearchByText(ctx, query)
	if serr != nil || len(people) == 0 {
		return nil, err
	}
	return sess.LookupProfile(ctx, strconv.FormatInt(people[0].ID, 10), d.fields)
}

// ensureProfile re-hydrates the target profile for a resumed selection that
// was persisted before the profile fetch, preferring the cache.
func (d *Dialog) ensureProfile(ctx context.Context, logger *zerolog.Logger, sel *domain.Selection) error {
	if len(sel.TargetProfile) > 0 || sel.TargetID == 0 {
		return nil
	}

	if d.cache != nil {
		cached, err := d.cache.Get(ctx, sel.TargetID)
		if err == nil && cached != nil {
			sel.TargetProfile = cached
			return d.selections.SetTargetProfile(ctx, sel.ID, cached)
		}
	}

	sess, err := d.userSession(ctx, sel)
	if err != nil {
		return err
	}
	profile, err := sess.LookupProfile(ctx, strconv.FormatInt(sel.TargetID, 10), d.fields)
	if err != nil {
		return err
	}
	sel.TargetProfile = profile
	d.cacheProfile(ctx, logger, sel.TargetID, profile)
	return d.selections.SetTargetProfile(ctx, sel.ID, profile)
}

func (d *Dialog) cacheProfile(ctx context.Context, logger *zerolog.Logger, personID int64, profile domain.Profile) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, personID, profile); err != nil {
		logger.Warn().Err(err).Msg("failed to cache profile")
	}
}

func (d *Dialog) userSession(ctx context.Context, sel *domain.Selection) (directory.Session, error) {
	return d.client.OpenSession(ctx, sel.Token)
}

// say delivers an outbound message; delivery failures are logged, never
// surfaced.
func (d *Dialog) say(ctx context.Context, logger *zerolog.Logger, recipientID int64, text string, attachments []string) {
	if err := d.group.SendMessage(ctx, recipientID, text, attachments); err != nil {
		logger.Error().Err(err).Msg("failed to send message")
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
