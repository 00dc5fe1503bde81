package mirror

import (
	"context"
	"fmt"

	"mediakeep/internal/config"
	"mediakeep/internal/media"
)

// NewFromConfig creates a Mirror implementation based on the mirror config
// type. A disabled mirror config returns (nil, nil).
func NewFromConfig(ctx context.Context, cfg config.MirrorConfig) (media.Mirror, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryMirror(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem mirror requires root to be set")
		}
		return NewFilesystemMirror(cfg.Root)
	case "s3":
		return NewS3Mirror(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
