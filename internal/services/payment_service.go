package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"venus_app_echo/internal/models"
)

// PushPaymentInitiator starts a provider-side payment prompt. *DarajaClient satisfies it.
type PushPaymentInitiator interface {
	InitiateSTK(ctx context.Context, in STKRequest) (*STKResult, error)
}

// PaymentService drives the payment lifecycle from creation to webhook resolution
type PaymentService struct {
	db        *gorm.DB
	initiator PushPaymentInitiator
	notifier  *Notifier
	queue     Enqueuer
	now       func() time.Time
}

// NewPaymentService creates a new PaymentService. initiator may be nil when
// the provider is not configured.
func NewPaymentService(db *gorm.DB, initiator PushPaymentInitiator, notifier *Notifier, queue Enqueuer) *PaymentService {
	return &PaymentService{
		db:        db,
		initiator: initiator,
		notifier:  notifier,
		queue:     queue,
		now:       time.Now,
	}
}

// PaymentInput is the body shared by payment creation and STK initiation
type PaymentInput struct {
	Amount              float64         `json:"amount"`
	PlanID              uuid.UUID       `json:"plan_id"`
	PaymentRef          *string         `json:"payment_ref"`
	PhoneNumber         *string         `json:"phone_number"`
	MpesaTransactionID  *string         `json:"mpesa_transaction_id"`
	TransactionRequest  json.RawMessage `json:"transaction_request"`
	TransactionResponse json.RawMessage `json:"transaction_response"`
}

func (in PaymentInput) phone() string {
	if in.PhoneNumber == nil {
		return ""
	}
	return *in.PhoneNumber
}

// AddMonths adds calendar months, clamping the day to the end of the target month
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// Create records a payment against an active plan. When a phone number is
// supplied the STK push is attempted; its failure never removes the row.
func (s *PaymentService) Create(ctx context.Context, actor *models.User, in PaymentInput) (*models.Payment, error) {
	var plan models.PaymentPlan
	err := s.db.WithContext(ctx).Where("plan_id = ? AND active = ?", in.PlanID, true).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidPlan
		}
		return nil, err
	}

	paymentDate := s.now().UTC()
	payment := &models.Payment{
		UserID:              actor.ID,
		PlanID:              plan.ID,
		PaymentRef:          in.PaymentRef,
		PaymentDate:         paymentDate,
		ValidUntil:          AddMonths(paymentDate, plan.Months),
		Amount:              in.Amount,
		MpesaTransactionID:  in.MpesaTransactionID,
		TransactionRequest:  rawJSON(in.TransactionRequest),
		TransactionResponse: rawJSON(in.TransactionResponse),
		AuditFields:         models.NewAuditFields(models.ActorUser(actor.ID)),
	}

	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if phone := in.phone(); phone != "" {
		s.initiate(ctx, payment, &plan, phone)
	}
	return payment, nil
}

// InitiateSTK is Create with a mandatory phone number
func (s *PaymentService) InitiateSTK(ctx context.Context, actor *models.User, in PaymentInput) (*models.Payment, error) {
	if in.phone() == "" {
		return nil, ErrMissingPhone
	}
	return s.Create(ctx, actor, in)
}

func (s *PaymentService) initiate(ctx context.Context, payment *models.Payment, plan *models.PaymentPlan, phone string) {
	logger := log.With().Str("payment_id", payment.ID.String()).Logger()

	if s.initiator == nil {
		logger.Warn().Msg("Payment provider not configured, skipping STK push")
		return
	}

	res, err := s.initiator.InitiateSTK(ctx, STKRequest{
		Amount:   payment.Amount,
		Phone:    phone,
		PlanName: string(plan.Plan),
	})
	if err != nil {
		logger.Error().Err(err).Msg("STK push failed, payment kept")
		return
	}

	updates := map[string]interface{}{
		"transaction_request":  datatypes.JSON(res.Request),
		"transaction_response": datatypes.JSON(res.Response),
		"updated_by":           payment.CreatedBy,
	}
	if res.CheckoutRequestID != "" {
		updates["mpesa_transaction_id"] = res.CheckoutRequestID
	}

	if err := s.db.WithContext(ctx).Model(payment).Updates(updates).Error; err != nil {
		logger.Error().Err(err).Msg("Failed to store STK response")
		return
	}

	if res.CheckoutRequestID != "" {
		id := res.CheckoutRequestID
		payment.MpesaTransactionID = &id
	}
	payment.TransactionRequest = datatypes.JSON(res.Request)
	payment.TransactionResponse = datatypes.JSON(res.Response)
	payment.UpdatedBy = payment.CreatedBy
}

// List returns the caller's active payments
func (s *PaymentService) List(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("payment_date DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// Get returns a payment owned by userID
func (s *PaymentService) Get(ctx context.Context, userID, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Where("payment_id = ? AND user_id = ?", paymentID, userID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// PaymentPatch lists the fields an owner may overwrite
type PaymentPatch struct {
	PaymentRef          *string                `json:"payment_ref"`
	PaymentDate         *time.Time             `json:"payment_date"`
	ValidUntil          *time.Time             `json:"valid_until"`
	Amount              *float64               `json:"amount"`
	PlanID              *uuid.UUID             `json:"plan_id"`
	MpesaTransactionID  *string                `json:"mpesa_transaction_id"`
	TransactionRequest  json.RawMessage        `json:"transaction_request"`
	TransactionResponse json.RawMessage        `json:"transaction_response"`
	TransactionCallback json.RawMessage        `json:"transaction_callback"`
	TransactionStatus   *string                `json:"transaction_status"`
	DateCompleted       *time.Time             `json:"date_completed"`
	Active              *bool                  `json:"active"`
	Meta                map[string]interface{} `json:"meta"`
}

// Patch applies the non-nil fields of in to a payment the actor owns
func (s *PaymentService) Patch(ctx context.Context, actor *models.User, paymentID uuid.UUID, in PaymentPatch) (*models.Payment, error) {
	payment, err := s.Get(ctx, actor.ID, paymentID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"updated_by": models.ActorUser(actor.ID),
	}
	if in.PaymentRef != nil {
		updates["payment_ref"] = *in.PaymentRef
	}
	if in.PaymentDate != nil {
		updates["payment_date"] = in.PaymentDate.UTC()
	}
	if in.ValidUntil != nil {
		updates["valid_until"] = in.ValidUntil.UTC()
	}
	if in.Amount != nil {
		updates["amount"] = *in.Amount
	}
	if in.PlanID != nil {
		updates["plan_id"] = *in.PlanID
	}
	if in.MpesaTransactionID != nil {
		updates["mpesa_transaction_id"] = *in.MpesaTransactionID
	}
	if len(in.TransactionRequest) > 0 {
		updates["transaction_request"] = datatypes.JSON(in.TransactionRequest)
	}
	if len(in.TransactionResponse) > 0 {
		updates["transaction_response"] = datatypes.JSON(in.TransactionResponse)
	}
	if len(in.TransactionCallback) > 0 {
		updates["transaction_callback"] = datatypes.JSON(in.TransactionCallback)
	}
	if in.TransactionStatus != nil {
		updates["transaction_status"] = *in.TransactionStatus
	}
	if in.DateCompleted != nil {
		updates["date_completed"] = in.DateCompleted.UTC()
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if in.Meta != nil {
		payment.Meta = in.Meta
		if err := s.db.WithContext(ctx).Model(payment).Select("meta").Updates(payment).Error; err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(payment).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("mpesa_transaction_id already in use: %w", err)
		}
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	return s.Get(ctx, actor.ID, paymentID)
}

// STKCallback is the stkCallback object of a Daraja result delivery.
// ResultCode keeps the value as sent: a json.Number, a string or nil.
type STKCallback struct {
	MerchantRequestID string      `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        interface{} `json:"ResultCode"`
	ResultDesc        string      `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// CallbackItem is one sparse name/value pair from CallbackMetadata
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

type stkEnvelope struct {
	Body *struct {
		StkCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes a webhook body. A delivery without Body yields an
// empty callback, which resolves as declined.
func ParseCallback(raw []byte) (*STKCallback, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env stkEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("invalid callback body: %w", err)
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return &STKCallback{}, nil
	}
	return env.Body.StkCallback, nil
}

// Succeeded reports whether ResultCode is the number zero. Strings never
// succeed, even "0".
func (cb *STKCallback) Succeeded() bool {
	n, ok := cb.ResultCode.(json.Number)
	if !ok {
		return false
	}
	f, err := n.Float64()
	return err == nil && f == 0
}

// Code returns ResultCode as an integer, or nil when it is missing or not integral
func (cb *STKCallback) Code() *int {
	var text string
	switch v := cb.ResultCode.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	code := int(f)
	return &code
}

// Settlement is the metadata a successful delivery carries
type Settlement struct {
	Amount          float64
	ReceiptNumber   string
	TransactionDate *time.Time
}

// Settlement extracts the known metadata keys. Unknown keys are ignored.
func (cb *STKCallback) Settlement(now time.Time) Settlement {
	var out Settlement
	if cb.CallbackMetadata == nil {
		return out
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			out.Amount = numberValue(item.Value)
		case "MpesaReceiptNumber":
			if item.Value != nil {
				out.ReceiptNumber = fmt.Sprint(item.Value)
			}
		case "TransactionDate":
			if item.Value == nil {
				continue
			}
			ts := parseDarajaTimestamp(fmt.Sprint(item.Value), now)
			out.TransactionDate = &ts
		}
	}
	return out
}

func numberValue(v interface{}) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func parseDarajaTimestamp(s string, now time.Time) time.Time {
	ts, err := time.ParseInLocation(darajaTimestampLayout, s, time.UTC)
	if err != nil {
		log.Warn().Str("value", s).Msg("Unparsable Daraja TransactionDate, using current time")
		return now.UTC()
	}
	return ts
}

// WebhookOutcome classifies a processed delivery
type WebhookOutcome string

const (
	WebhookDeclined WebhookOutcome = "declined"
	WebhookResolved WebhookOutcome = "resolved"
)

// ResolveFromWebhook settles the payment correlated by CheckoutRequestID.
// Replaying a delivery writes the same values again.
func (s *PaymentService) ResolveFromWebhook(ctx context.Context, cb *STKCallback, raw []byte) (WebhookOutcome, *models.Payment, error) {
	if !cb.Succeeded() {
		log.Warn().Interface("result_code", cb.ResultCode).Str("desc", cb.ResultDesc).Msg("Payment declined by provider")
		return WebhookDeclined, nil, nil
	}
	if cb.CheckoutRequestID == "" {
		return "", nil, ErrMalformedEvent
	}

	settlement := cb.Settlement(s.now())

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("mpesa_transaction_id = ?", cb.CheckoutRequestID).
			First(&payment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		ref := settlement.ReceiptNumber
		payment.TransactionCallback = datatypes.JSON(raw)
		payment.PaymentRef = &ref
		payment.DateCompleted = settlement.TransactionDate

		var plan models.PaymentPlan
		err = tx.Where("plan_id = ?", payment.PlanID).First(&plan).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			log.Warn().Str("payment_id", payment.ID.String()).Msg("Plan missing, leaving transaction status unset")
		case err != nil:
			return err
		default:
			status := models.TransactionStatusSuccessful
			if settlement.Amount < plan.Amount {
				status = models.TransactionStatusPartiallyPaid
				payment.Amount = settlement.Amount
			}
			payment.TransactionStatus = &status
		}

		payment.Touch(payment.CreatedBy)
		return tx.Model(&payment).
			Select("transaction_callback", "payment_ref", "date_completed", "transaction_status", "amount", "updated_by", "date_updated").
			Updates(&payment).Error
	})
	if err != nil {
		return "", nil, err
	}

	log.Info().Str("payment_id", payment.ID.String()).Msg("Payment updated from callback")

	if payment.Resolved() {
		s.notifyResolved(ctx, &payment)
	}
	return WebhookResolved, &payment, nil
}

func (s *PaymentService) notifyResolved(ctx context.Context, payment *models.Payment) {
	if s.notifier == nil || s.queue == nil {
		return
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("user_id", "fcm_token").First(&user, "user_id = ?", payment.UserID).Error; err != nil {
		log.Warn().Err(err).Str("user_id", payment.UserID.String()).Msg("Payer not found, skipping payment notification")
		return
	}
	token := user.PushToken()
	if token == "" {
		return
	}

	snapshot := *payment
	s.queue.Enqueue("payment_resolved", func(ctx context.Context) {
		s.notifier.NotifyPaymentResolved(ctx, &snapshot, token)
	})
}

// RecordCallback keeps a verbatim copy of a webhook delivery
func (s *PaymentService) RecordCallback(ctx context.Context, cb *STKCallback, raw []byte, outcome string) {
	entry := models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMpesa,
		Outcome:        outcome,
		Metadata:       rawJSON(raw),
	}
	if cb != nil {
		entry.CheckoutRequestID = cb.CheckoutRequestID
		entry.ResultCode = cb.Code()
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Error().Err(err).Msg("Failed to record payment callback")
	}
}

// ExpiringBetween returns resolved, unexpired payments whose validity ends in [from, to)
func (s *PaymentService) ExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("active = ? AND expired_at IS NULL AND transaction_status IS NOT NULL", true).
		Where("valid_until >= ? AND valid_until < ?", from, to).
		Find(&payments).Error
	return payments, err
}

// ExpireLapsed stamps expired_at on payments whose validity ended before now.
// The rows stay active so they remain in the payer's history.
func (s *PaymentService) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("active = ? AND expired_at IS NULL AND valid_until < ?", true, now).
		Updates(map[string]interface{}{
			"expired_at": now,
			"updated_by": models.ActorSystem,
		})
	return res.RowsAffected, res.Error
}

func rawJSON(b []byte) datatypes.JSON {
	if len(b) == 0 {
		return nil
	}
	return datatypes.JSON(b)
}
