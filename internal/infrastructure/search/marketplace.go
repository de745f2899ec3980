// Package search finds marketplace products for an analysis by scraping a search results page.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"TrendCurator/internal/config"
	"TrendCurator/internal/domain"
	"TrendCurator/internal/metrics"
	"TrendCurator/internal/ports"
)

const (
	resultSelector = `div[data-component-type="s-search-result"]`
	userAgent      = "Mozilla/5.0 (compatible; TrendCurator/1.0)"
)

// MarketplaceSearch scrapes product cards and attaches named marketplace search links.
type MarketplaceSearch struct {
	endpoint   string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
}

var _ ports.ProductSearch = (*MarketplaceSearch)(nil)

// NewMarketplaceSearch wires an HTTP client; a nil client gets the configured timeout.
func NewMarketplaceSearch(cfg config.SearchConfig, client *http.Client) *MarketplaceSearch {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &MarketplaceSearch{
		endpoint:   cfg.Endpoint,
		maxResults: maxResults,
		client:     client,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Search returns matches in page order; an empty slice means nothing was found.
func (m *MarketplaceSearch) Search(ctx context.Context, analysis domain.Analysis) ([]domain.ProductMatch, error) {
	query := searchQuery(analysis)
	if query == "" {
		return nil, errors.New("analysis has no searchable keyword")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}

	started := time.Now()
	doc, err := m.fetch(ctx, query)
	metrics.RecordProviderCall("search", err, time.Since(started))
	if err != nil {
		return nil, err
	}

	links := MarketplaceLinks(analysis)
	fallback := links["amazon"]

	var matches []domain.ProductMatch
	doc.Find(resultSelector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		match, ok := m.parseCard(card, links, fallback)
		if ok {
			matches = append(matches, match)
		}
		return len(matches) < m.maxResults
	})

	return matches, nil
}

func (m *MarketplaceSearch) fetch(ctx context.Context, query string) (*goquery.Document, error) {
	pageURL, err := buildSearchURL(m.endpoint, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketplace returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return doc, nil
}

func (m *MarketplaceSearch) parseCard(card *goquery.Selection, links map[string]string, fallback string) (domain.ProductMatch, bool) {
	title := strings.TrimSpace(card.Find("h2").First().Text())
	if title == "" {
		return domain.ProductMatch{}, false
	}

	href, _ := card.Find("h2 a[href]").First().Attr("href")
	if href == "" {
		href, _ = card.Find("a.a-link-normal[href]").First().Attr("href")
	}
	primary := resolve(m.endpoint, href)
	if primary == "" {
		primary = fallback
	}

	thumb, _ := card.Find("img.s-image").First().Attr("src")

	return domain.ProductMatch{
		Title:       title,
		Thumbnail:   thumb,
		Links:       links,
		PrimaryLink: primary,
	}, true
}

// MarketplaceLinks builds named search URLs from the analysis keywords.
func MarketplaceLinks(a domain.Analysis) map[string]string {
	links := map[string]string{}
	if en := strings.TrimSpace(firstNonEmpty(a.EnglishKeyword, a.ProductName)); en != "" {
		links["amazon"] = "https://www.amazon.com/s?k=" + url.QueryEscape(en)
		links["aliexpress"] = "https://www.aliexpress.com/wholesale?SearchText=" + url.QueryEscape(en)
	}
	if zh := strings.TrimSpace(a.ChineseKeyword); zh != "" {
		links["taobao"] = "https://s.taobao.com/search?q=" + url.QueryEscape(zh)
	}
	return links
}

func searchQuery(a domain.Analysis) string {
	return strings.TrimSpace(firstNonEmpty(a.EnglishKeyword, a.ProductName))
}

func buildSearchURL(base, query string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid search endpoint %q", base)
	}
	q := parsed.Query()
	q.Set("k", query)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func resolve(base, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
