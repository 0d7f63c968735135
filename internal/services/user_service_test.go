package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venus_app_echo/internal/models"
	"venus_app_echo/internal/testutil"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	db := testutil.NewDB(t, &models.User{}, &models.Profile{})
	return NewUserService(db, "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: " Wanjiru@Venus.test ", FirstName: "Wanjiru", LastName: "Kamau", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "wanjiru@venus.test", user.Email)
	assert.Equal(t, models.ActorEmail("wanjiru@venus.test"), user.CreatedBy)
	assert.NotEqual(t, "s3cret", user.HashedPassword)

	_, err = svc.Register(ctx, RegisterInput{Email: "wanjiru@venus.test", Password: "x"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	res, err := svc.Login(ctx, "wanjiru@venus.test", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)

	id, err := svc.ParseToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = svc.Login(ctx, "wanjiru@venus.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@venus.test", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "gone@venus.test", Password: "pw"})
	require.NoError(t, err)
	testutil.Deactivate(t, svc.db, user)

	_, err = svc.Login(ctx, "gone@venus.test", "pw")
	assert.ErrorIs(t, err, ErrInactiveUser)

	_, err = svc.Login(ctx, "gone@venus.test", "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "a@venus.test", Password: "pw"})
	require.NoError(t, err)
	token, err := svc.IssueToken(user)
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewUserService(svc.db, "other-secret", time.Hour)
		forged, err := other.IssueToken(user)
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, forged)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewUserService(svc.db, "test-secret", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		stale, err := past.IssueToken(user)
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, stale)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown subject", func(t *testing.T) {
		ghost, err := svc.IssueToken(&models.User{ID: uuid.New()})
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, ghost)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unsigned", func(t *testing.T) {
		none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": user.ID.String(), "exp": time.Now().Add(time.Hour).Unix()})
		raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, raw)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("inactive", func(t *testing.T) {
		testutil.Deactivate(t, svc.db, user)
		_, err := svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInactiveUser)
	})
}

func TestUpdateSelf(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "self@venus.test", FirstName: "Old", LastName: "Name", Password: "pw"})
	require.NoError(t, err)

	first := "New"
	token := "fcm-token-1"
	updated, err := svc.UpdateSelf(ctx, user, UpdateSelfInput{FirstName: &first, FCMToken: &token})
	require.NoError(t, err)

	assert.Equal(t, "New", updated.FirstName)
	assert.Equal(t, "Name", updated.LastName)
	assert.Equal(t, "fcm-token-1", updated.PushToken())
	assert.Equal(t, models.ActorUser(user.ID), updated.UpdatedBy)
}

func TestCompleteProfile(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterInput{Email: "alice@venus.test", Password: "pw"})
	require.NoError(t, err)
	bob, err := svc.Register(ctx, RegisterInput{Email: "bob@venus.test", Password: "pw"})
	require.NoError(t, err)

	in := CompleteProfileInput{
		PhoneNumber: "+254711111111",
		Gender:      models.GenderFemale,
		DateOfBirth: time.Date(1996, 4, 12, 0, 0, 0, 0, time.UTC),
		Bio:         "hello",
	}
	created, err := svc.CompleteProfile(ctx, alice, in)
	require.NoError(t, err)
	assert.True(t, created.Online)

	in.Bio = "updated"
	again, err := svc.CompleteProfile(ctx, alice, in)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "updated", again.Bio)

	_, err = svc.CompleteProfile(ctx, bob, in)
	assert.ErrorIs(t, err, ErrPhoneTaken)

	loaded, err := svc.GetWithProfile(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Profile)
	assert.Equal(t, "updated", loaded.Profile.Bio)

	_, err = svc.GetWithProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
