package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"venus_app_echo/internal/models"
)

// UpsertOutcome tells whether an upsert inserted or overwrote the row
type UpsertOutcome int

const (
	OutcomeCreated UpsertOutcome = iota
	OutcomeUpdated
)

// MatchUpsertInput is the client payload for POST /matches
type MatchUpsertInput struct {
	MyID            uuid.UUID  `json:"my_id"`
	PartnerID       uuid.UUID  `json:"partner_id"`
	ThreadID        uuid.UUID  `json:"thread_id"`
	LastMessage     *string    `json:"last_message"`
	LastMessageDate *time.Time `json:"last_message_date"`
	SentBy          *uuid.UUID `json:"sent_by"`
}

// MatchService keeps one row per (my_id, partner_id, thread_id)
type MatchService struct {
	db       *gorm.DB
	notifier *Notifier
	queue    Enqueuer
}

// NewMatchService creates a new MatchService
func NewMatchService(db *gorm.DB, notifier *Notifier, queue Enqueuer) *MatchService {
	return &MatchService{db: db, notifier: notifier, queue: queue}
}

// Upsert creates the match or overwrites its last-message fields. Only the
// owner of my_id may write the row.
func (s *MatchService) Upsert(ctx context.Context, actor *models.User, in MatchUpsertInput) (*models.Match, UpsertOutcome, error) {
	if in.MyID != actor.ID {
		return nil, 0, ErrForbidden
	}

	match, outcome, err := s.upsert(ctx, actor, in)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the insert race, the row now exists
		log.Debug().Str("thread_id", in.ThreadID.String()).Msg("Concurrent match insert, retrying as update")
		match, outcome, err = s.upsert(ctx, actor, in)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to upsert match: %w", err)
	}

	s.afterUpsert(ctx, actor, match, outcome, in.LastMessage != nil)
	return match, outcome, nil
}

func (s *MatchService) upsert(ctx context.Context, actor *models.User, in MatchUpsertInput) (*models.Match, UpsertOutcome, error) {
	actorRef := models.ActorUser(actor.ID)

	var match models.Match
	err := s.db.WithContext(ctx).
		Where("my_id = ? AND partner_id = ? AND thread_id = ?", in.MyID, in.PartnerID, in.ThreadID).
		First(&match).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		match = models.Match{
			MyID:            in.MyID,
			PartnerID:       in.PartnerID,
			ThreadID:        in.ThreadID,
			LastMessage:     in.LastMessage,
			LastMessageDate: in.LastMessageDate,
			SentBy:          in.SentBy,
			AuditFields:     models.NewAuditFields(actorRef),
		}
		if err := s.db.WithContext(ctx).Create(&match).Error; err != nil {
			return nil, 0, err
		}
		return &match, OutcomeCreated, nil
	case err != nil:
		return nil, 0, err
	}

	match.LastMessage = in.LastMessage
	match.LastMessageDate = in.LastMessageDate
	match.SentBy = in.SentBy
	match.Touch(actorRef)

	err = s.db.WithContext(ctx).Model(&match).Select("last_message", "last_message_date", "sent_by", "updated_by", "date_updated").Updates(&match).Error
	if err != nil {
		return nil, 0, err
	}
	return &match, OutcomeUpdated, nil
}

func (s *MatchService) afterUpsert(ctx context.Context, actor *models.User, match *models.Match, outcome UpsertOutcome, hasMessage bool) {
	if s.notifier == nil || s.queue == nil {
		return
	}
	if outcome == OutcomeUpdated && !hasMessage {
		return
	}

	var partner models.User
	if err := s.db.WithContext(ctx).Select("user_id", "fcm_token").First(&partner, "user_id = ?", match.PartnerID).Error; err != nil {
		log.Warn().Err(err).Str("partner_id", match.PartnerID.String()).Msg("Partner not found, skipping match notification")
		return
	}
	token := partner.PushToken()
	sender := *actor
	snapshot := *match

	if outcome == OutcomeCreated {
		s.queue.Enqueue("match_created", func(ctx context.Context) {
			s.notifier.NotifyMatchCreated(ctx, &snapshot, token)
		})
		return
	}

	s.queue.Enqueue("chat_message", func(ctx context.Context) {
		s.notifier.NotifyChatMessage(ctx, &snapshot, token, &sender)
	})
}

// ListForUser returns the active matches the user takes part in
func (s *MatchService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.WithContext(ctx).
		Where("active = ? AND (my_id = ? OR partner_id = ?)", true, userID, userID).
		Order("date_updated DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}
