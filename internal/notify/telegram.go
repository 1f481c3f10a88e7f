package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	BotToken string `envconfig:"TELEGRAM_TOKEN"`
	ChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	APIURL   string `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
}

// Client posts borrowing notifications to a telegram chat. Delivery is
// best-effort, callers log and drop failures.
type Client struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.Named("telegram"),
	}
}

func (c *Client) SendMessage(ctx context.Context, text string) error {
	params := url.Values{}
	params.Set("chat_id", c.cfg.ChatID)
	params.Set("text", text)

	u := fmt.Sprintf("%s/bot%s/sendMessage?%s", c.cfg.APIURL, c.cfg.BotToken, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage: %s", resp.Status)
	}
	c.log.Debug("message sent")
	return nil
}
