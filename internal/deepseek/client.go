// Package deepseek is a small client for the DeepSeek chat completions API.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"wipe-commander/internal/history"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"

	chatEndpoint    = "/chat/completions"
	balanceEndpoint = "/user/balance"
)

var (
	// ErrAPIStatus wraps every non-2xx answer.
	ErrAPIStatus = errors.New("completion API returned an error status")
	// ErrNoChoices means the response had no "choices".
	ErrNoChoices = errors.New("the API response does not contain the 'choices' key")
	// ErrNoBalance means the response had no "balance_infos".
	ErrNoBalance = errors.New("the API response does not contain the 'balance_infos' key")
)

// Client talks to the completion API. The underlying HTTP client is created
// on first use and recreated after Close.
type Client struct {
	baseURL string
	token   string
	model   string
	timeout time.Duration
	logger  *logrus.Logger

	mu   sync.Mutex
	http *http.Client
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token, model string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		model:   model,
		timeout: 120 * time.Second,
		logger:  logger,
	}
}

type chatRequest struct {
	Model       string         `json:"model"`
	Temperature float64        `json:"temperature"`
	Messages    []history.Turn `json:"messages"`
	Stream      bool           `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type balanceResponse struct {
	BalanceInfos []struct {
		Currency     string `json:"currency"`
		TotalBalance string `json:"total_balance"`
	} `json:"balance_infos"`
}

// Chat submits the transcript and returns the first choice.
func (c *Client) Chat(ctx context.Context, turns []history.Turn, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages:    turns,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode chat request")
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, chatEndpoint, body, &resp); err != nil {
		c.logger.WithError(err).Error("Chat completion request failed")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// Balance returns the first balance entry as "<amount> <currency>".
func (c *Client) Balance(ctx context.Context) (string, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, balanceEndpoint, nil, &resp); err != nil {
		c.logger.WithError(err).Error("Balance request failed")
		return "", err
	}
	if len(resp.BalanceInfos) == 0 {
		return "", ErrNoBalance
	}
	info := resp.BalanceInfos[0]
	return fmt.Sprintf("%s %s", info.TotalBalance, info.Currency), nil
}

// Close drops idle connections; the next call builds a fresh HTTP client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
}

func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c.http
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.session().Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(ErrAPIStatus, "%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
