package gravatar

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/jon4hz/appmonitor/internal/config"
)

const baseURL = "https://www.gravatar.com/avatar/"

var (
	validDefaults = map[string]bool{
		"404": true, "mp": true, "identicon": true, "monsterid": true,
		"wavatar": true, "retro": true, "robohash": true, "blank": true,
	}
	validRatings = map[string]bool{"g": true, "pg": true, "r": true, "x": true}
)

// Avatar is what the profile and navigation bar render for a user.
// URL is empty when Gravatar is disabled; templates then show the initials.
type Avatar struct {
	URL      string
	Initials string
}

// ForUser returns the avatar of a user. A size of zero uses the configured size.
func ForUser(firstName, lastName, email string, cfg *config.GravatarConfig, size int) Avatar {
	return Avatar{
		URL:      URL(email, cfg, size),
		Initials: Initials(firstName, lastName, email),
	}
}

// GenerateURL generates a Gravatar URL with the configured size.
// Returns an empty string if Gravatar is disabled or email is empty.
func GenerateURL(email string, cfg *config.GravatarConfig) string {
	return URL(email, cfg, 0)
}

// URL generates a Gravatar URL for the email. A size of zero uses the configured size.
func URL(email string, cfg *config.GravatarConfig, size int) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if cfg == nil || !cfg.Enabled || email == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(email))
	u := baseURL + hex.EncodeToString(sum[:])

	if size <= 0 {
		size = cfg.Size
	}
	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Set("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		params.Set("r", cfg.Rating)
	}
	if IsValidSize(size) {
		params.Set("s", strconv.Itoa(size))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Initials returns up to two upper case initials, falling back to the email.
func Initials(firstName, lastName, email string) string {
	var b strings.Builder
	for _, s := range []string{firstName, lastName} {
		for _, r := range strings.TrimSpace(s) {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	if b.Len() == 0 {
		for _, r := range strings.TrimSpace(email) {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

// IsValidDefaultImage checks if the provided default image value is valid for Gravatar.
func IsValidDefaultImage(defaultImage string) bool {
	return validDefaults[defaultImage]
}

// IsValidRating checks if the provided rating value is valid for Gravatar.
func IsValidRating(rating string) bool {
	return validRatings[rating]
}

// IsValidSize checks if the provided size value is valid for Gravatar (1-2048 pixels).
func IsValidSize(size int) bool {
	return size >= 1 && size <= 2048
}
