// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"venus_app_echo/internal/models"
)

// NewDB opens a private in-memory sqlite database and migrates the given models
func NewDB(t *testing.T, migrate ...interface{}) *gorm.DB {
	t.Helper()

	// a named shared-cache database keeps every pooled connection on the same data
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err, "failed to open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(migrate...), "failed to migrate")
	return db
}

// NewRedis starts a miniredis server and returns a connected client
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// CreateUser inserts an active user with an optional push token
func CreateUser(t *testing.T, db *gorm.DB, email string, fcmToken string) *models.User {
	t.Helper()

	user := &models.User{
		Email:          email,
		FirstName:      "Test",
		LastName:       "User",
		HashedPassword: "x",
		AuditFields:    models.NewAuditFields(models.ActorEmail(email)),
	}
	if fcmToken != "" {
		user.FCMToken = &fcmToken
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePlan inserts an active plan
func CreatePlan(t *testing.T, db *gorm.DB, kind models.PlanKind, amount float64, months int) *models.PaymentPlan {
	t.Helper()

	plan := &models.PaymentPlan{
		Plan:        kind,
		Amount:      amount,
		Months:      months,
		AuditFields: models.NewAuditFields(models.ActorEmail("seed@venus.test")),
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

// Deactivate flips the active flag off. gorm skips zero values on create,
// so inactive rows have to be written after insert.
func Deactivate(t *testing.T, db *gorm.DB, model interface{}) {
	t.Helper()
	require.NoError(t, db.Model(model).Update("active", false).Error)
}
