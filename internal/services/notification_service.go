package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"

	"venus_app_echo/internal/models"
)

// PushSender delivers a single FCM message. *messaging.Client satisfies it.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Enqueuer runs fire-and-forget jobs off the request path
type Enqueuer interface {
	Enqueue(name string, job func(ctx context.Context)) bool
}

// Notifier sends best-effort push notifications. Failures are logged and
// never returned.
type Notifier struct {
	sender PushSender
}

// NewNotifier creates a Notifier. A nil sender disables delivery.
func NewNotifier(sender PushSender) *Notifier {
	return &Notifier{sender: sender}
}

type matchPayload struct {
	MatchID         string  `json:"match_id"`
	MyID            string  `json:"my_id"`
	PartnerID       string  `json:"partner_id"`
	ThreadID        string  `json:"thread_id"`
	LastMessage     string  `json:"last_message"`
	LastMessageDate *string `json:"last_message_date"`
	SentBy          *string `json:"sent_by"`
}

func newMatchPayload(m *models.Match) matchPayload {
	p := matchPayload{
		MatchID:   m.ID.String(),
		MyID:      m.MyID.String(),
		PartnerID: m.PartnerID.String(),
		ThreadID:  m.ThreadID.String(),
	}
	if m.LastMessage != nil {
		p.LastMessage = *m.LastMessage
	}
	if m.LastMessageDate != nil {
		d := m.LastMessageDate.UTC().Format(time.RFC3339)
		p.LastMessageDate = &d
	}
	if m.SentBy != nil {
		s := m.SentBy.String()
		p.SentBy = &s
	}
	return p
}

type paymentPayload struct {
	PaymentID         string `json:"payment_id"`
	UserID            string `json:"user_id"`
	Amount            string `json:"amount"`
	PaymentRef        string `json:"payment_ref"`
	TransactionStatus string `json:"transaction_status"`
	PlanID            string `json:"plan_id"`
}

func newPaymentPayload(p *models.Payment) paymentPayload {
	out := paymentPayload{
		PaymentID: p.ID.String(),
		UserID:    p.UserID.String(),
		Amount:    strconv.FormatFloat(p.Amount, 'f', 2, 64),
		PlanID:    p.PlanID.String(),
	}
	if p.PaymentRef != nil {
		out.PaymentRef = *p.PaymentRef
	}
	if p.TransactionStatus != nil {
		out.TransactionStatus = *p.TransactionStatus
	}
	return out
}

// NotifyMatchCreated tells the partner a new match exists
func (n *Notifier) NotifyMatchCreated(ctx context.Context, match *models.Match, recipientToken string) {
	if recipientToken == "" {
		log.Warn().Str("match_id", match.ID.String()).Msg("FCM token is missing, skipping match notification")
		return
	}

	body, err := json.Marshal(newMatchPayload(match))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode match notification")
		return
	}

	n.send(ctx, "match", recipientToken, map[string]string{
		"title": "New match",
		"type":  "match",
		"match": string(body),
	})
}

// NotifyChatMessage tells the partner a new message was posted to the thread
func (n *Notifier) NotifyChatMessage(ctx context.Context, match *models.Match, recipientToken string, sender *models.User) {
	if recipientToken == "" {
		log.Warn().Str("match_id", match.ID.String()).Msg("Partner FCM token is missing, skipping chat notification")
		return
	}
	if match.SentBy == nil {
		log.Warn().Str("match_id", match.ID.String()).Msg("Match sent_by is empty, skipping chat notification")
		return
	}

	body, err := json.Marshal(newMatchPayload(match))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode chat notification")
		return
	}

	avatar := ""
	if sender.AvatarURL != nil {
		avatar = *sender.AvatarURL
	}

	n.send(ctx, "chat", recipientToken, map[string]string{
		"title":  sender.FullName(),
		"type":   "chat",
		"avatar": avatar,
		"match":  string(body),
	})
}

// NotifyPaymentResolved tells the payer their payment settled
func (n *Notifier) NotifyPaymentResolved(ctx context.Context, payment *models.Payment, recipientToken string) {
	if recipientToken == "" {
		log.Warn().Str("payment_id", payment.ID.String()).Msg("FCM token is missing, skipping payment notification")
		return
	}

	body, err := json.Marshal(newPaymentPayload(payment))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode payment notification")
		return
	}

	n.send(ctx, "payment", recipientToken, map[string]string{
		"title":        "Payment received",
		"type":         "payment",
		"payment_data": string(body),
	})
}

// SendSubscriptionReminder warns a subscriber that their plan is about to lapse
func (n *Notifier) SendSubscriptionReminder(ctx context.Context, payment *models.Payment, recipientToken string) bool {
	if recipientToken == "" {
		return false
	}

	body, err := json.Marshal(newPaymentPayload(payment))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode reminder notification")
		return false
	}

	return n.send(ctx, "subscription_reminder", recipientToken, map[string]string{
		"title":        "Subscription expiring",
		"type":         "subscription_reminder",
		"valid_until":  payment.ValidUntil.UTC().Format(time.RFC3339),
		"payment_data": string(body),
	})
}

// SendTest delivers an arbitrary title/body pair, used by the CLI
func (n *Notifier) SendTest(ctx context.Context, token, title, body string) error {
	if n.sender == nil {
		return fmt.Errorf("push delivery is not configured")
	}
	_, err := n.sender.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Android:      &messaging.AndroidConfig{Priority: "high"},
	})
	return err
}

func (n *Notifier) send(ctx context.Context, kind, token string, data map[string]string) bool {
	if n == nil || n.sender == nil {
		log.Debug().Str("type", kind).Msg("Push delivery disabled, skipping notification")
		return false
	}

	id, err := n.sender.Send(ctx, &messaging.Message{
		Data:    data,
		Token:   token,
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		log.Error().Err(err).Str("type", kind).Msg("Failed to send notification")
		return false
	}

	log.Info().Str("type", kind).Str("message_id", id).Str("token", tokenPrefix(token)).Msg("Notification sent")
	return true
}

func tokenPrefix(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10] + "..."
}
