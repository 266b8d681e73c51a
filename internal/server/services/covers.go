package services

import (
	"context"
	"database/sql"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/whattodo/internal/common"
	sc "github.com/dmitrijs2005/whattodo/internal/server/config"
	"github.com/dmitrijs2005/whattodo/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// CoverService hands out presigned S3 PUT URLs for list cover images.
// The object key, not the URL, is what a list's cover_url stores.
type CoverService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewCoverService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *CoverService {
	return &CoverService{db: db, repomanager: m, config: cfg}
}

// CoverKey names the object holding a cover of listID.
func CoverKey(ownerID, listID, contentType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("covers/%s/%s/%s%s", ownerID, listID, uuid.NewString(), ext)
}

func (s *CoverService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignCoverUpload returns the object key and a presigned PUT URL for a new
// cover of the caller's list. contentType must be an image type; the upload
// has to send the same Content-Type.
func (s *CoverService) PresignCoverUpload(ctx context.Context, ownerID, listID, contentType string) (string, string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: cover must be an image, got %q", common.ErrorValidation, contentType)
	}

	l, err := s.repomanager.Lists(s.db).Get(ctx, listID)
	if err != nil {
		return "", "", fmt.Errorf("list %s: %w", listID, err)
	}
	if l.OwnerID != ownerID {
		return "", "", fmt.Errorf("list %s: %w", listID, common.ErrorForbidden)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := CoverKey(ownerID, listID, contentType)
	validity := s.config.CoverUploadValidityDuration
	if validity <= 0 {
		validity = 15 * time.Minute
	}

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}
