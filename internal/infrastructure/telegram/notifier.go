package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/metrics"
	"TrendCurator/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	digestLimit    = 10
)

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishDigest posts a short Markdown summary of the run to Telegram.
func (n *Notifier) PublishDigest(ctx context.Context, runID string, recs []domain.EnrichedRecommendation) (err error) {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	started := time.Now()
	defer func() { metrics.RecordProviderCall("telegram", err, time.Since(started)) }()

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", Digest(runID, recs))
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// Digest renders the message body: per-category counts and the first few picks.
func Digest(runID string, recs []domain.EnrichedRecommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily picks*: %d recommendations\n", len(recs))

	counts := make(map[domain.Category]int)
	for _, r := range recs {
		counts[r.Category]++
	}
	var parts []string
	for _, c := range domain.Categories() {
		if counts[c] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", c, counts[c]))
		}
	}
	if len(parts) > 0 {
		b.WriteString(strings.Join(parts, " · "))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for i, r := range recs {
		if i == digestLimit {
			fmt.Fprintf(&b, "…and %d more\n", len(recs)-digestLimit)
			break
		}
		fmt.Fprintf(&b, "%d. [%s](%s) (%s, %s)\n", i+1, escape(r.ProductName), r.ProductURL, r.Category, r.Platform)
	}

	fmt.Fprintf(&b, "\n`run %s`", runID)
	return b.String()
}

var markdownEscaper = strings.NewReplacer("[", "(", "]", ")", "*", "", "_", " ", "`", "'")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
