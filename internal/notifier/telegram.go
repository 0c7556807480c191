package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"MacroTracker/internal/logger"
	"MacroTracker/internal/metrics"
)

// DefaultAPIURL is the Telegram Bot API root.
const DefaultAPIURL = "https://api.telegram.org"

// Notifier delivers a text message to the user.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIURL   string
	Client   *http.Client
	// RetryInterval is the first backoff delay of SendWithRetry.
	RetryInterval time.Duration

	log *logger.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIURL:   DefaultAPIURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		RetryInterval: time.Second,
		log:           logger.Get().Named("telegram"),
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIURL, t.BotToken, method)
}

// APIError is a non-200 reply from the Bot API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: status %d, body: %s", e.StatusCode, e.Body)
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff. Client errors other
// than 429 are not retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		t.log.Warnw("telegram send failed", "attempt", attempt, "error", err)
		return err
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = t.RetryInterval
	strategy.MaxElapsedTime = 2 * time.Minute

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(maxRetries)), ctx))
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("telegram send after %d attempts: %w", attempt, err)
	}
	metrics.NotificationsSent.WithLabelValues("success").Inc()
	return nil
}

// RetryingNotifier adapts SendWithRetry to the Notifier interface.
type RetryingNotifier struct {
	*TelegramNotifier
	MaxRetries int
}

func (r RetryingNotifier) Send(ctx context.Context, text string) error {
	return r.SendWithRetry(ctx, text, r.MaxRetries)
}

// LogNotifier writes messages to the log. Used when Telegram is disabled.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Get().Named("notify")}
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.log.Infow("notification", "text", text)
	metrics.NotificationsSent.WithLabelValues("logged").Inc()
	return nil
}
