package domain

import "fmt"

// Platform identifies the social network an item was collected from.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms lists supported platforms in the order the pool is assembled.
func Platforms() []Platform {
	return []Platform{PlatformInstagram, PlatformTikTok}
}

// ParsePlatform validates a raw platform value.
func ParsePlatform(raw string) (Platform, error) {
	switch p := Platform(raw); p {
	case PlatformInstagram, PlatformTikTok:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", raw)
	}
}

// Category is the fixed product category enum used for quota selection.
type Category string

const (
	CategoryFashion   Category = "fashion"
	CategoryBeauty    Category = "beauty"
	CategoryHome      Category = "home"
	CategoryTech      Category = "tech"
	CategoryLifestyle Category = "lifestyle"
)

// Categories lists the enum in display order.
func Categories() []Category {
	return []Category{CategoryFashion, CategoryBeauty, CategoryHome, CategoryTech, CategoryLifestyle}
}

// DefaultCategory is assigned whenever classification cannot produce a label.
const DefaultCategory = CategoryLifestyle

// ParseCategory normalizes a label; ok is false for anything outside the enum.
func ParseCategory(raw string) (Category, bool) {
	switch c := Category(raw); c {
	case CategoryFashion, CategoryBeauty, CategoryHome, CategoryTech, CategoryLifestyle:
		return c, true
	default:
		return "", false
	}
}

// CandidateItem is a ranked piece of social content fetched fresh on every run.
type CandidateItem struct {
	ID          string
	Platform    Platform
	Text        string
	Popularity  int
	RawMetadata map[string]any
}

// CategorizedItem is a candidate after classification.
type CategorizedItem struct {
	CandidateItem
	Category Category
}
