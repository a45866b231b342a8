package screenshot

import "github.com/portfolieo/portfolio-api/internal/portfolio"

const (
	// PlaceholderStrategy labels results that carry the fallback image.
	PlaceholderStrategy = "placeholder"
	// PlaceholderContentType is the media type of the fallback image.
	PlaceholderContentType = "image/svg+xml"
	// Width and Height are the capture viewport and the placeholder size.
	Width  = 1200
	Height = 900
)

const placeholderSVG = `<svg width="1200" height="900" xmlns="http://www.w3.org/2000/svg">
  <rect width="1200" height="900" fill="#f3f4f6"/>
  <text x="50%" y="50%" font-family="Arial, sans-serif" font-size="24" fill="#6b7280" text-anchor="middle" dominant-baseline="middle">Screenshot unavailable</text>
  <text x="50%" y="55%" font-family="Arial, sans-serif" font-size="16" fill="#9ca3af" text-anchor="middle" dominant-baseline="middle">Configure a screenshot provider to enable previews</text>
</svg>`

// Placeholder returns the deterministic fallback result.
func Placeholder() portfolio.ScreenshotResult {
	return portfolio.ScreenshotResult{
		Placeholder: true,
		Image:       []byte(placeholderSVG),
		ContentType: PlaceholderContentType,
		Strategy:    PlaceholderStrategy,
	}
}
