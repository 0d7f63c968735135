package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venus_app_echo/internal/models"
	"venus_app_echo/internal/testutil"
)

func TestPlanServiceCachesActivePlans(t *testing.T) {
	db := testutil.NewDB(t, &models.PaymentPlan{})
	mr, client := testutil.NewRedis(t)
	svc := NewPlanService(db, NewRedisCacheFromClient(client))
	ctx := context.Background()
	actor := models.ActorEmail("admin@venus.test")

	_, err := svc.Create(ctx, actor, PlanInput{Plan: models.PlanMonthly, Amount: 500, Months: 1})
	require.NoError(t, err)
	inactive := false
	_, err = svc.Create(ctx, actor, PlanInput{Plan: models.PlanVIP, Amount: 5000, Months: 12, Active: &inactive})
	require.NoError(t, err)

	plans, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, models.PlanMonthly, plans[0].Plan)
	assert.True(t, mr.Exists(activePlansCacheKey))

	// rows written behind the service are hidden until the cache is dropped
	testutil.CreatePlan(t, db, models.PlanAnnual, 4000, 12)
	cached, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	annual, err := svc.Create(ctx, actor, PlanInput{Plan: models.PlanSemiAnnual, Amount: 2500, Months: 6})
	require.NoError(t, err)
	assert.False(t, mr.Exists(activePlansCacheKey))

	fresh, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)

	toggled, err := svc.SetActive(ctx, actor, annual.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.Active)
	assert.Equal(t, actor, toggled.UpdatedBy)
	assert.False(t, mr.Exists(activePlansCacheKey))

	afterToggle, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, afterToggle, 2)

	_, err = svc.SetActive(ctx, actor, uuid.New(), true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlanServiceWithoutCache(t *testing.T) {
	db := testutil.NewDB(t, &models.PaymentPlan{})
	svc := NewPlanService(db, nil)
	ctx := context.Background()

	testutil.CreatePlan(t, db, models.PlanTest, 1, 1)
	plans, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}
