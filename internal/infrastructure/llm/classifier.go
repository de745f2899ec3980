package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/ports"
)

const classifierPrompt = `You label social media posts with exactly one shopping category.
Allowed answers: fashion, beauty, home, tech, lifestyle.
Reply with the single lowercase word and nothing else.`

// maxClassifyChars bounds the prompt size for long captions.
const maxClassifyChars = 1200

type completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Classifier maps post text to a category through the chat API, behind a circuit breaker.
// Callers substitute the default category on error.
type Classifier struct {
	chat    completer
	breaker *gobreaker.CircuitBreaker[domain.Category]
}

var _ ports.Classifier = (*Classifier)(nil)

// BreakerSettings tunes when the classifier stops calling a failing provider.
type BreakerSettings struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

// NewClassifier wraps a chat client.
func NewClassifier(chat completer, bs BreakerSettings) *Classifier {
	if bs.FailureThreshold == 0 {
		bs.FailureThreshold = 5
	}
	if bs.Cooldown <= 0 {
		bs.Cooldown = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[domain.Category](gobreaker.Settings{
		Name:        "llm-classifier",
		MaxRequests: 1,
		Timeout:     bs.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.FailureThreshold
		},
		IsSuccessful: providerHealthy,
	})
	return &Classifier{chat: chat, breaker: breaker}
}

// Classify returns the provider's label or an error; unknown labels are errors too.
func (c *Classifier) Classify(ctx context.Context, text string) (domain.Category, error) {
	return c.breaker.Execute(func() (domain.Category, error) {
		reply, err := c.chat.Complete(ctx, []Message{
			{Role: "system", Content: classifierPrompt},
			{Role: "user", Content: truncate(text, maxClassifyChars)},
		})
		if err != nil {
			return "", err
		}
		return parseLabel(reply)
	})
}

var errUnknownLabel = errors.New("unrecognised category label")

// providerHealthy keeps caller cancellations and off-list labels from tripping the breaker;
// only transport and provider errors count as failures.
func providerHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, errUnknownLabel)
}

func parseLabel(reply string) (domain.Category, error) {
	word := strings.ToLower(strings.TrimSpace(reply))
	word = strings.Trim(word, " .\"'`\n")
	if c, ok := domain.ParseCategory(word); ok {
		return c, nil
	}
	for _, field := range strings.Fields(word) {
		if c, ok := domain.ParseCategory(strings.Trim(field, ".,:;\"'")); ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q", errUnknownLabel, reply)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
