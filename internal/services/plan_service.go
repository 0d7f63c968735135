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

const (
	activePlansCacheKey = "payment_plans:active"
	activePlansCacheTTL = 10 * time.Minute
)

// PlanService manages subscription tiers
type PlanService struct {
	db    *gorm.DB
	cache *RedisCache
}

// NewPlanService creates a PlanService. cache may be nil.
func NewPlanService(db *gorm.DB, cache *RedisCache) *PlanService {
	return &PlanService{db: db, cache: cache}
}

// PlanInput is the payload for creating a plan
type PlanInput struct {
	Plan   models.PlanKind        `json:"plan" yaml:"plan"`
	Amount float64                `json:"amount" yaml:"amount"`
	Months int                    `json:"months" yaml:"months"`
	Active *bool                  `json:"active" yaml:"active"`
	Meta   map[string]interface{} `json:"meta" yaml:"meta"`
}

// Create stores a new plan and drops the cached active list
func (s *PlanService) Create(ctx context.Context, actor models.ActorRef, in PlanInput) (*models.PaymentPlan, error) {
	plan := &models.PaymentPlan{
		Plan:        in.Plan,
		Amount:      in.Amount,
		Months:      in.Months,
		AuditFields: models.NewAuditFields(actor),
	}
	if in.Meta != nil {
		plan.Meta = in.Meta
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		// zero values are skipped on insert
		if in.Active != nil && !*in.Active {
			plan.Active = false
			return tx.Model(plan).Update("active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	if err := s.cache.Delete(ctx, activePlansCacheKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate plan cache")
	}
	return plan, nil
}

// ListActive returns every active plan, served from Redis when available
func (s *PlanService) ListActive(ctx context.Context) ([]models.PaymentPlan, error) {
	return GetOrSet(s.cache, ctx, activePlansCacheKey, activePlansCacheTTL, func() ([]models.PaymentPlan, error) {
		var plans []models.PaymentPlan
		if err := s.db.WithContext(ctx).Where("active = ?", true).Order("amount ASC").Find(&plans).Error; err != nil {
			return nil, err
		}
		return plans, nil
	})
}

// SetActive toggles a plan, the only change allowed once payments reference it
func (s *PlanService) SetActive(ctx context.Context, actor models.ActorRef, planID uuid.UUID, active bool) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	if err := s.db.WithContext(ctx).First(&plan, "plan_id = ?", planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	plan.Active = active
	plan.Touch(actor)
	err := s.db.WithContext(ctx).Model(&plan).Select("active", "updated_by", "date_updated").Updates(&plan).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	if err := s.cache.Delete(ctx, activePlansCacheKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate plan cache")
	}
	return &plan, nil
}
