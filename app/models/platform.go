package models

import "strings"

// Platform identifies an ad platform. Values are stored verbatim in the database.
type Platform string

const (
	PlatformGoogleAds Platform = "GoogleAds"
	PlatformMetaAds   Platform = "MetaAds"
)

// Platforms lists all supported ad platforms in display order.
var Platforms = []Platform{PlatformGoogleAds, PlatformMetaAds}

// ParsePlatform accepts the canonical names case-insensitively, plus the snake_case aliases.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "googleads", "google_ads":
		return PlatformGoogleAds, true
	case "metaads", "meta_ads":
		return PlatformMetaAds, true
	}
	return "", false
}

func (p Platform) String() string {
	return string(p)
}

// Label is the human readable platform name.
func (p Platform) Label() string {
	switch p {
	case PlatformGoogleAds:
		return "Google Ads"
	case PlatformMetaAds:
		return "Meta Ads"
	}
	return string(p)
}
