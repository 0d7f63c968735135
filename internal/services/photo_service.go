package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"venus_app_echo/internal/config"
	"venus_app_echo/internal/models"
)

var allowedPhotoExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// ObjectUploader stores a single object. *s3.Client satisfies it.
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from static credentials when given, or the
// default AWS chain otherwise
func NewS3Client(ctx context.Context, cfg config.AWSConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// PhotoService uploads user photos and records them
type PhotoService struct {
	db       *gorm.DB
	uploader ObjectUploader
	cfg      config.AWSConfig
}

// NewPhotoService creates a new PhotoService
func NewPhotoService(db *gorm.DB, uploader ObjectUploader, cfg config.AWSConfig) *PhotoService {
	return &PhotoService{db: db, uploader: uploader, cfg: cfg}
}

// PhotoUpload is a single file received from the client
type PhotoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PhotoExtension validates the file name and returns its lowercase extension
func PhotoExtension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !allowedPhotoExtensions[ext] {
		return "", ErrUnsupportedFileType
	}
	return ext, nil
}

// Upload pushes the image to object storage under
// users/{user_id}/photos/{photo_id}.{ext} and stores an unverified Photo
func (s *PhotoService) Upload(ctx context.Context, actor *models.User, in PhotoUpload) (*models.Photo, error) {
	ext, err := PhotoExtension(in.Filename)
	if err != nil {
		return nil, err
	}
	if in.Size > s.cfg.MaxPhotoBytes() {
		return nil, ErrFileTooLarge
	}

	photoID := uuid.New()
	key := fmt.Sprintf("users/%s/photos/%s.%s", actor.ID, photoID, ext)

	contentType := in.ContentType
	if contentType == "" {
		contentType = "image/" + ext
	}

	_, err = s.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          in.Body,
		ContentLength: aws.Int64(in.Size),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload photo to S3: %w", err)
	}

	actorRef := models.ActorUser(actor.ID)
	photo := &models.Photo{
		ID:          photoID,
		UserID:      actor.ID,
		PhotoURL:    s.PublicURL(key),
		AuditFields: models.NewAuditFields(actorRef),
	}
	if err := s.db.WithContext(ctx).Create(photo).Error; err != nil {
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}

	log.Info().Str("photo_id", photoID.String()).Str("key", key).Msg("Photo uploaded")
	return photo, nil
}

// PublicURL returns the address the object is served from
func (s *PhotoService) PublicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// List returns the caller's active photos
func (s *PhotoService) List(ctx context.Context, userID uuid.UUID) ([]models.Photo, error) {
	var photos []models.Photo
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("date_created ASC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}
