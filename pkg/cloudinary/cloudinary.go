package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config contains the Cloudinary credentials and the folder that holds
// registered submission blobs.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Store registers oversized submission parts with Cloudinary so the grading
// call can reference them by URL instead of inlining the bytes.
type Store struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Store from credentials. All three credential fields are
// required; the folder may be empty.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Store{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "blob_store").Logger(),
	}, nil
}

// Upload registers the part's bytes and returns the secure URL used as the
// external blob reference. Each call mints a fresh public ID, so re-uploading
// the same part on a retried attempt never collides with the previous one.
func (s *Store) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     buildPublicID(name),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to register submission blob: %w", err)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Int("bytes", result.Bytes).
		Msg("submission blob registered")

	return result.SecureURL, nil
}

// buildPublicID derives a collision-free public ID from the original file
// name: non-alphanumeric runes collapse to dashes and a uuid suffix keeps
// identically named files from different submissions apart.
func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")

	if base == "" {
		return "part-" + uuid.NewString()
	}

	return base + "-" + uuid.NewString()
}
