package blob

import (
	"context"
	"geopandemic/internal/config"

	infraS3 "geopandemic/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// S3ConfigFromSettings maps the BLOB_S3 and AWS settings onto S3Config.
func S3ConfigFromSettings(s config.Settings) S3Config {
	return S3Config{
		Bucket:          s.S3Bucket,
		Region:          s.S3Region,
		Endpoint:        s.S3Endpoint,
		PathStyle:       s.S3PathStyle,
		AccessKeyID:     s.S3AccessKeyID,
		SecretAccessKey: s.S3SecretKey,
		SessionToken:    s.S3SessionToken,
	}
}

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	s, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMockS3ForTests exposes the in-memory S3 transport mock for cross-package
// tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
