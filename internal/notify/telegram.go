package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/javi11/mediahook/internal/httpclient"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Telegram is a minimal Bot API client; sendMessage is all the engine
// needs.
type Telegram struct {
	token      string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// TelegramOption configures the client.
type TelegramOption func(*Telegram)

// WithTelegramBaseURL sets a custom API base URL (for testing).
func WithTelegramBaseURL(url string) TelegramOption {
	return func(t *Telegram) {
		t.baseURL = url
	}
}

// NewTelegram creates a bot client.
func NewTelegram(token string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		token:      token,
		baseURL:    defaultTelegramBaseURL,
		httpClient: httpclient.NewShort(),
		log:        slog.Default().With("component", "telegram"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// SendMessage delivers an HTML-formatted message to the given chat.
// Transient failures are retried with backoff; delivery failures are
// logged by callers, never fatal.
func (t *Telegram) SendMessage(ctx context.Context, chatID, text string) error {
	if t.token == "" || chatID == "" {
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := t.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("execute request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				err := fmt.Errorf("telegram API error: %s: %s", resp.Status, string(body))
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(5*time.Second),
		retry.OnRetry(func(n uint, err error) {
			t.log.Warn("telegram send retry", "attempt", n+1, "err", err)
		}),
	)
}
