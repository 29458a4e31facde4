package tmdb

import (
	"encoding/json"
	"fmt"
)

// Fallbacks used when /configuration is unavailable or incomplete.
const (
	FallbackImageBaseURL = "https://image.tmdb.org/t/p/"
	FallbackPosterSize   = "w342"
	FallbackBackdropSize = "w780"
	FallbackProfileSize  = "w185"
)

// ImageConfig holds image URL prefixes (base URL + chosen size) per image
// kind.
type ImageConfig struct {
	BaseURL  string `json:"base_url"`
	Poster   string `json:"poster"`
	Backdrop string `json:"backdrop"`
	Profile  string `json:"profile"`
}

// DefaultImageConfig is the config built from the fallbacks alone.
func DefaultImageConfig() ImageConfig {
	return imageConfigFrom(apiConfiguration{})
}

// PosterURL returns the absolute poster URL for path, or "" when path is empty.
func (ic ImageConfig) PosterURL(path string) string { return joinImage(ic.Poster, path) }

// BackdropURL returns the absolute backdrop URL for path.
func (ic ImageConfig) BackdropURL(path string) string { return joinImage(ic.Backdrop, path) }

// ProfileURL returns the absolute profile URL for path.
func (ic ImageConfig) ProfileURL(path string) string { return joinImage(ic.Profile, path) }

func joinImage(prefix, path string) string {
	if path == "" {
		return ""
	}
	return prefix + path
}

func decodeImageConfig(body []byte, _ NoArgs) (ImageConfig, error) {
	var raw apiConfiguration
	if err := json.Unmarshal(body, &raw); err != nil {
		return ImageConfig{}, fmt.Errorf("decode configuration: %w", err)
	}
	return imageConfigFrom(raw), nil
}

func imageConfigFrom(raw apiConfiguration) ImageConfig {
	base := raw.Images.SecureBaseURL
	if base == "" {
		base = FallbackImageBaseURL
	}
	return ImageConfig{
		BaseURL:  base,
		Poster:   base + optimalSize(raw.Images.PosterSizes, FallbackPosterSize, 3),
		Backdrop: base + optimalSize(raw.Images.BackdropSizes, FallbackBackdropSize, 2),
		Profile:  base + optimalSize(raw.Images.ProfileSizes, FallbackProfileSize, 1),
	}
}

// optimalSize picks sizes[target], or the largest available below it.
func optimalSize(sizes []string, fallback string, target int) string {
	if len(sizes) == 0 {
		return fallback
	}
	if target > len(sizes)-1 {
		target = len(sizes) - 1
	}
	if sizes[target] == "" {
		return fallback
	}
	return sizes[target]
}
