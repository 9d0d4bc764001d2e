package blob

import (
	"context"
	"fmt"
	"geopandemic/internal/config"
)

// Open selects a Store from settings.BlobDriver (fs when unset).
func Open(ctx context.Context, settings config.Settings) (Store, error) {
	switch Driver(settings.BlobDriver) {
	case "", DriverFilesystem:
		return NewFilesystem(settings.BlobRoot)
	case DriverS3:
		return NewS3(ctx, S3ConfigFromSettings(settings))
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", settings.BlobDriver)
	}
}
