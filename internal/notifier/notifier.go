// Package notifier sends categorized outbound webhook notifications
// (startup, price alert, trade, error, completion) for the monitor engine.
// Delivery failures are logged, never propagated — a notification is a
// side effect, not a condition the caller should have to handle.
package notifier

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client posts notification envelopes to per-monitor webhook URLs.
type Client struct {
	http *resty.Client
}

// New builds a notifier Client.
func New() *Client {
	return &Client{http: resty.New().SetTimeout(10 * time.Second)}
}

type envelope struct {
	MsgType string         `json:"msg_type"`
	Content map[string]any `json:"content"`
}

type webhookResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// send posts title/body as a text-message envelope to webhookURL, returning
// whether delivery and acceptance both succeeded.
func (c *Client) send(webhookURL, title, body string) bool {
	if webhookURL == "" {
		log.Warn().Msg("notifier: no webhook url configured, dropping notification")
		return false
	}

	content := map[string]any{"text": body}
	if title != "" {
		content["title"] = title
	}
	env := envelope{MsgType: "text", Content: content}

	var result webhookResponse
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(env).
		SetResult(&result).
		Post(webhookURL)
	if err != nil {
		log.Error().Err(err).Msg("notifier: webhook request failed")
		return false
	}
	if resp.StatusCode() != http.StatusOK {
		log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Msg("notifier: webhook returned non-200")
		return false
	}
	if result.Code != 0 {
		log.Error().Int("code", result.Code).Str("msg", result.Msg).Msg("notifier: webhook rejected notification")
		return false
	}
	return true
}

// Startup announces that a monitor has begun running.
func (c *Client) Startup(webhookURL, name string) bool {
	title := "Monitor started"
	body := "Price monitor started, watching for market-cap movement..."
	if name != "" {
		title = fmt.Sprintf("[%s] monitor started", name)
		body = fmt.Sprintf("[%s] price monitor started, watching for market-cap movement...", name)
	}
	return c.send(webhookURL, title, body)
}

// PriceInfo carries the observed price/market-cap pair shown in a price
// alert, plus the threshold it's being compared against.
type PriceInfo struct {
	Price     float64
	MarketCap float64
	Threshold float64
	Symbol    string
}

// PriceAlert reports a price observation. When thresholdReached is true the
// body reads as a trigger warning; otherwise it's a routine update, only
// meant to be sent when ChangeFilter has admitted it.
func (c *Client) PriceAlert(webhookURL string, info PriceInfo, name string, thresholdReached bool, side string, percentChange *float64) bool {
	label := info.Symbol
	if name != "" {
		label = name
	}

	var title, body string
	if thresholdReached {
		title = fmt.Sprintf("[%s] market-cap threshold reached", label)
		body = fmt.Sprintf("[%s] market-cap threshold reached!\ncurrent price: $%.8f\ncurrent market cap: $%.2f\n\npreparing to execute automatic %s...", label, info.Price, info.MarketCap, side)
	} else {
		title = fmt.Sprintf("[%s] price update", label)
		body = fmt.Sprintf("[%s] price update:\ncurrent price: $%.8f\ncurrent market cap: $%.2f", label, info.Price, info.MarketCap)
		if percentChange != nil {
			body += fmt.Sprintf("\nchange: %.2f%%", *percentChange)
		}
	}
	return c.send(webhookURL, title, body)
}

// Trade reports a completed swap.
func (c *Client) Trade(webhookURL, txHash string, amount, usdValue float64, name, symbol, side string) bool {
	label := symbol
	if name != "" {
		label = name
	}
	title := fmt.Sprintf("[%s] %s executed", label, side)
	body := fmt.Sprintf("[%s] automatic %s completed!\namount: %.4f %s\nestimated value: $%.2f USD\ntransaction: %s\nview: https://solscan.io/tx/%s",
		label, side, amount, symbol, usdValue, txHash, txHash)
	return c.send(webhookURL, title, body)
}

// Error reports a worker-level failure. name is optional.
func (c *Client) Error(webhookURL, message, name string) bool {
	title := "System error"
	body := fmt.Sprintf("monitor system encountered an error: %s", message)
	if name != "" {
		title = fmt.Sprintf("[%s] system error", name)
		body = fmt.Sprintf("[%s] monitor encountered an error: %s", name, message)
	}
	return c.send(webhookURL, title, body)
}

// Completion sends a free-form notification, used when a monitor finishes.
func (c *Client) Completion(webhookURL, title, body string) bool {
	return c.send(webhookURL, title, body)
}
