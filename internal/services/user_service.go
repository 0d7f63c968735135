package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"venus_app_echo/internal/models"
)

// UserService handles registration, credentials and self-service updates
type UserService struct {
	db        *gorm.DB
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// RegisterInput is the payload for account creation
type RegisterInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Register creates a user attributed to their own email
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:          email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		HashedPassword: string(hash),
		AuditFields:    models.NewAuditFields(models.ActorEmail(email)),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Msg("User registered")
	return user, nil
}

// LoginResult carries the issued token and the authenticated user
type LoginResult struct {
	AccessToken string
	User        *models.User
}

// Login verifies email and password. Inactive accounts fail with ErrInactiveUser
// only after the password check passes.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Profile").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrInactiveUser
	}

	token, err := s.IssueToken(&user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{AccessToken: token, User: &user}, nil
}

// IssueToken signs an HS256 access token for the user
func (s *UserService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates the signature and expiry and returns the subject
func (s *UserService) ParseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidCredentials
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}

	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return id, nil
}

// Authenticate resolves a bearer token to exactly one active user
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	id, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Active {
		return nil, ErrInactiveUser
	}
	return &user, nil
}

// GetWithProfile loads a user and its profile
func (s *UserService) GetWithProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&user, "user_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateSelfInput carries the fields a user may change on their own account
type UpdateSelfInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
	FCMToken  *string `json:"fcm_token"`
}

// UpdateSelf applies the non-nil fields of in to the actor's account
func (s *UserService) UpdateSelf(ctx context.Context, actor *models.User, in UpdateSelfInput) (*models.User, error) {
	updates := map[string]interface{}{
		"updated_by": models.ActorUser(actor.ID),
	}
	if in.FirstName != nil {
		updates["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		updates["last_name"] = *in.LastName
	}
	if in.AvatarURL != nil {
		updates["avatar_url"] = *in.AvatarURL
	}
	if in.FCMToken != nil {
		updates["fcm_token"] = *in.FCMToken
	}

	if err := s.db.WithContext(ctx).Model(&models.User{ID: actor.ID}).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetWithProfile(ctx, actor.ID)
}

// CompleteProfileInput is the profile-completion payload
type CompleteProfileInput struct {
	PhoneNumber string        `json:"phone_number"`
	Gender      models.Gender `json:"gender"`
	DateOfBirth time.Time     `json:"date_of_birth"`
	Bio         string        `json:"bio"`
}

// CompleteProfile creates or updates the actor's profile, keyed by user id
func (s *UserService) CompleteProfile(ctx context.Context, actor *models.User, in CompleteProfileInput) (*models.Profile, error) {
	actorRef := models.ActorUser(actor.ID)
	dob := in.DateOfBirth.UTC()

	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Profile{}).
			Where("phone_number = ? AND user_id <> ?", in.PhoneNumber, actor.ID).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrPhoneTaken
		}

		err := tx.Where("user_id = ?", actor.ID).First(&profile).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			profile = models.Profile{
				UserID:      actor.ID,
				PhoneNumber: in.PhoneNumber,
				Gender:      in.Gender,
				DateOfBirth: &dob,
				Bio:         in.Bio,
				Online:      true,
				AuditFields: models.NewAuditFields(actorRef),
			}
			return tx.Create(&profile).Error
		case err != nil:
			return err
		}

		profile.PhoneNumber = in.PhoneNumber
		profile.Gender = in.Gender
		profile.DateOfBirth = &dob
		profile.Bio = in.Bio
		profile.Touch(actorRef)
		return tx.Save(&profile).Error
	})
	if err != nil {
		// a concurrent claim on the same phone surfaces as a unique violation
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}

	return &profile, nil
}
