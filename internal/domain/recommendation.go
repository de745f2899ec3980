package domain

import (
	"errors"
	"time"
)

var (
	// ErrFetch marks a content pool failure; it is the only fatal run error.
	ErrFetch = errors.New("fetch content pool")
	// ErrPersist marks a sink failure; computed recommendations are still returned.
	ErrPersist = errors.New("persist recommendations")
)

// Analysis is the structured product idea extracted from a content item.
type Analysis struct {
	ProductName    string   `json:"productName"`
	Reason         string   `json:"reason"`
	TargetAudience string   `json:"targetAudience"`
	SellingPoint   string   `json:"sellingPoint"`
	ChineseKeyword string   `json:"chineseKeyword"`
	EnglishKeyword string   `json:"englishKeyword"`
	SearchTags     []string `json:"searchTags"`
	EstimatedPrice string   `json:"estimatedPrice"`
}

// Usable reports whether the analysis names a product.
func (a *Analysis) Usable() bool {
	return a != nil && a.ProductName != ""
}

// AnalysisStatus tags an analyzer outcome.
type AnalysisStatus int

const (
	AnalysisOK AnalysisStatus = iota
	AnalysisParseFailure
)

// AnalysisResult is either an Analysis or a parse failure carrying the raw provider output.
type AnalysisResult struct {
	Status   AnalysisStatus
	Analysis *Analysis
	Raw      string
}

// AnalysisOf wraps a successfully parsed analysis.
func AnalysisOf(a Analysis) AnalysisResult {
	return AnalysisResult{Status: AnalysisOK, Analysis: &a}
}

// ParseFailure records provider output that could not be interpreted.
func ParseFailure(raw string) AnalysisResult {
	return AnalysisResult{Status: AnalysisParseFailure, Raw: raw}
}

// ProductMatch is a marketplace hit for an analysis.
type ProductMatch struct {
	Title       string            `json:"title"`
	Thumbnail   string            `json:"thumbnail"`
	Links       map[string]string `json:"links"`
	PrimaryLink string            `json:"primaryLink"`
}

// RecommendationDetails is the serialized analysis column.
type RecommendationDetails struct {
	Reason         string            `json:"reason"`
	TargetAudience string            `json:"targetAudience"`
	SellingPoint   string            `json:"sellingPoint"`
	ChineseKeyword string            `json:"chineseKeyword"`
	EnglishKeyword string            `json:"englishKeyword"`
	SearchTags     []string          `json:"searchTags"`
	EstimatedPrice string            `json:"estimatedPrice"`
	Links          map[string]string `json:"links"`
}

// EnrichedRecommendation is one persisted, immutable recommendation row.
type EnrichedRecommendation struct {
	Date              time.Time             `json:"date"`
	Platform          Platform              `json:"platform"`
	Category          Category              `json:"category"`
	TrendKeyword      string                `json:"trend_keyword"`
	ProductName       string                `json:"product_name"`
	ProductURL        string                `json:"product_url"`
	ThumbnailURL      string                `json:"thumbnail_url"`
	Analysis          RecommendationDetails `json:"analysis"`
	ConfidenceScore   float64               `json:"confidence_score"`
	OriginalContentID string                `json:"original_content_id"`
}

// NewRecommendation assembles a row from a selected item, its analysis and the primary match.
func NewRecommendation(day time.Time, item CategorizedItem, a Analysis, match ProductMatch, confidence float64) EnrichedRecommendation {
	y, m, d := day.Date()
	return EnrichedRecommendation{
		Date:         time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Platform:     item.Platform,
		Category:     item.Category,
		TrendKeyword: a.ProductName,
		ProductName:  a.ProductName,
		ProductURL:   match.PrimaryLink,
		ThumbnailURL: match.Thumbnail,
		Analysis: RecommendationDetails{
			Reason:         a.Reason,
			TargetAudience: a.TargetAudience,
			SellingPoint:   a.SellingPoint,
			ChineseKeyword: a.ChineseKeyword,
			EnglishKeyword: a.EnglishKeyword,
			SearchTags:     a.SearchTags,
			EstimatedPrice: a.EstimatedPrice,
			Links:          match.Links,
		},
		ConfidenceScore:   confidence,
		OriginalContentID: item.ID,
	}
}

// InsertResult reports the outcome of a bulk insert.
type InsertResult struct {
	Success bool
	Count   int
}
