package profile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// MaxImageBytes bounds uploaded backgrounds and logos.
const MaxImageBytes = 5 << 20

// Kind selects which customization image is addressed.
type Kind string

// Image kinds.
const (
	KindBackground Kind = "background"
	KindLogo       Kind = "logo"
)

// Path is the fixed blob location for the owner's image of this kind, so a
// new upload replaces the old one.
func (k Kind) Path(ownerID string) string {
	return fmt.Sprintf("%ss/%s_%s", k, k, ownerID)
}

func (s *Service) setImage(ctx context.Context, kind Kind, ownerID string, url *string) error {
	switch kind {
	case KindBackground:
		return s.deps.Users.SetCustomBackground(ctx, ownerID, url)
	case KindLogo:
		return s.deps.Users.SetCustomLogo(ctx, ownerID, url)
	default:
		return fmt.Errorf("unknown image kind %q: %w", kind, portfolio.ErrInvalidInput)
	}
}

// UploadImage stores a background or logo and records its URL. Premium only.
// The content must sniff as a raster image.
func (s *Service) UploadImage(ctx context.Context, kind Kind, ownerID string, r io.Reader) (string, error) {
	if kind != KindBackground && kind != KindLogo {
		return "", fmt.Errorf("unknown image kind %q: %w", kind, portfolio.ErrInvalidInput)
	}
	if _, err := s.requirePremium(ctx, ownerID); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no file provided: %w", portfolio.ErrInvalidInput)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("file exceeds %d bytes: %w", MaxImageBytes, portfolio.ErrInvalidInput)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported content type %s: %w", contentType, portfolio.ErrInvalidInput)
	}

	location, err := s.deps.Blobs.PutObject(ctx, kind.Path(ownerID), contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", kind, err)
	}
	location = withVersion(location, s.deps.Hasher.Version(data))
	if err := s.setImage(ctx, kind, ownerID, &location); err != nil {
		return "", fmt.Errorf("save %s url: %w", kind, err)
	}
	s.logger.Info("image uploaded",
		zap.String("owner_id", ownerID),
		zap.String("kind", string(kind)),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
	)
	return location, nil
}

// DeleteImage clears the background or logo. Premium only.
func (s *Service) DeleteImage(ctx context.Context, kind Kind, ownerID string) error {
	if _, err := s.requirePremium(ctx, ownerID); err != nil {
		return err
	}
	if err := s.setImage(ctx, kind, ownerID, nil); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}
	if err := s.deps.Blobs.DeleteObject(ctx, kind.Path(ownerID)); err != nil {
		s.logger.Warn("delete stored image failed", zap.String("owner_id", ownerID), zap.String("kind", string(kind)), zap.Error(err))
	}
	return nil
}

func withVersion(location, version string) string {
	sep := "?"
	if strings.Contains(location, "?") {
		sep = "&"
	}
	return location + sep + "v=" + version
}
