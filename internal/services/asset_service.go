package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	pstorage "github.com/seva-flowers/api/internal/platform/storage"
)

const (
	maxImageAssetSize      = int64(10 * 1024 * 1024) // 10 MiB
	uploadURLExpiry        = 15 * time.Minute
	assetLoggerEventIssued = "asset.upload.issued"
)

var allowedImageContentTypes = []string{"image/png", "image/jpeg", "image/webp"}

var (
	// ErrAssetInvalidInput indicates the caller provided an invalid argument.
	ErrAssetInvalidInput = errors.New("asset: invalid input")
	// ErrAssetUnavailable indicates signed URL generation failed.
	ErrAssetUnavailable = errors.New("asset: unavailable")
)

type uploadSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts pstorage.SignedURLOptions) (pstorage.SignedURLResult, error)
}

// AssetServiceDeps wires dependencies for signed catalog image uploads.
type AssetServiceDeps struct {
	Signer        uploadSigner
	Bucket        string
	PublicBaseURL string
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type assetService struct {
	signer        uploadSigner
	bucket        string
	publicBaseURL string
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewAssetService constructs an AssetService backed by the provided dependencies.
func NewAssetService(deps AssetServiceDeps) (AssetService, error) {
	if deps.Signer == nil {
		return nil, errors.New("asset service: signer is required")
	}
	bucket := strings.TrimSpace(deps.Bucket)
	if bucket == "" {
		return nil, errors.New("asset service: bucket is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &assetService{
		signer:        deps.Signer,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/"),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// IssueUploadURL produces a short-lived signed PUT URL for a catalog image
// alongside the public URL the stored flower record should reference.
func (s *assetService) IssueUploadURL(ctx context.Context, cmd IssueUploadURLCommand) (SignedUpload, error) {
	fileName := strings.TrimSpace(cmd.FileName)
	if fileName == "" {
		return SignedUpload{}, fmt.Errorf("%w: file name is required", ErrAssetInvalidInput)
	}

	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	if !imageContentTypeAllowed(contentType) {
		return SignedUpload{}, fmt.Errorf("%w: content type %q not allowed", ErrAssetInvalidInput, cmd.ContentType)
	}

	objectKey, err := pstorage.BuildObjectPath(pstorage.PurposeFlowerImage, pstorage.PathParams{
		UploadID: s.newID(),
		FileName: fileName,
	})
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrAssetInvalidInput, err)
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, objectKey, pstorage.SignedURLOptions{
		Upload: &pstorage.UploadOptions{
			Method:              "PUT",
			ContentType:         contentType,
			AllowedContentTypes: allowedImageContentTypes,
			MaxSize:             maxImageAssetSize,
			ExpiresIn:           uploadURLExpiry,
		},
	})
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}

	s.logger(ctx, assetLoggerEventIssued, map[string]any{
		"actorId":   cmd.ActorID,
		"object":    objectKey,
		"expiresAt": result.ExpiresAt,
	})

	return SignedUpload{
		UploadURL: result.URL,
		PublicURL: s.publicURL(objectKey),
		ObjectKey: objectKey,
		ExpiresAt: result.ExpiresAt,
	}, nil
}

func (s *assetService) publicURL(objectKey string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + objectKey
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectKey)
}

func imageContentTypeAllowed(contentType string) bool {
	for _, candidate := range allowedImageContentTypes {
		if contentType == candidate {
			return true
		}
	}
	return false
}
