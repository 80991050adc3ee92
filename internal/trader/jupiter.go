package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oreoft/meme-trade-bot/internal/configregistry"
	"github.com/oreoft/meme-trade-bot/internal/monitorerrors"
)

// Quote is a Jupiter swap quote, carrying only the fields the trader reads
// directly; the rest of the response is forwarded to /swap untouched.
type Quote struct {
	InAmount  string         `json:"inAmount"`
	OutAmount string         `json:"outAmount"`
	raw       map[string]any `json:"-"`
}

// JupiterClient requests swap quotes and pre-built swap transactions from
// a Jupiter-compatible aggregator.
type JupiterClient struct {
	http *resty.Client

	mu          sync.RWMutex
	baseURL     string
	slippageBps int
}

// NewJupiterClient builds a JupiterClient whose base URL and slippage
// track the registry's JUPITER_API_URL and SLIPPAGE_BPS settings.
func NewJupiterClient(registry *configregistry.Registry) *JupiterClient {
	c := &JupiterClient{http: resty.New().SetTimeout(15 * time.Second)}
	c.loadConfig(registry)
	registry.Register(&jupiterSubscriber{client: c, registry: registry})
	return c
}

type jupiterSubscriber struct {
	client   *JupiterClient
	registry *configregistry.Registry
}

func (s *jupiterSubscriber) RefreshConfig() error {
	s.client.loadConfig(s.registry)
	return nil
}

func (c *JupiterClient) loadConfig(registry *configregistry.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = registry.GetString("JUPITER_API_URL", "https://quote-api.jup.ag/v6")
	c.slippageBps = int(registry.GetFloat("SLIPPAGE_BPS", 100))
}

func (c *JupiterClient) config() (baseURL string, slippageBps int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.slippageBps
}

// GetQuote requests a swap quote for exchanging amount (in the input
// mint's smallest unit) of inputMint for outputMint.
func (c *JupiterClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (*Quote, error) {
	baseURL, slippageBps := c.config()

	var raw map[string]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   inputMint,
			"outputMint":  outputMint,
			"amount":      fmt.Sprintf("%d", amount),
			"slippageBps": fmt.Sprintf("%d", slippageBps),
		}).
		SetResult(&raw).
		Get(baseURL + "/quote")
	if err != nil {
		return nil, &monitorerrors.TransientRemoteError{Op: "get jupiter quote", Err: err}
	}
	if resp.StatusCode() != 200 {
		return nil, &monitorerrors.TransientRemoteError{Op: "get jupiter quote", Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
	}
	if errMsg, ok := raw["error"]; ok {
		return nil, &monitorerrors.TransientRemoteError{Op: "get jupiter quote", Err: fmt.Errorf("%v", errMsg)}
	}

	q := &Quote{raw: raw}
	if v, ok := raw["inAmount"].(string); ok {
		q.InAmount = v
	}
	if v, ok := raw["outAmount"].(string); ok {
		q.OutAmount = v
	}
	return q, nil
}

// GetSwapTransaction builds the base64-encoded, unsigned versioned
// transaction that executes quote on behalf of userPublicKey.
func (c *JupiterClient) GetSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	baseURL, _ := c.config()

	var result struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"quoteResponse":    quote.raw,
			"userPublicKey":    userPublicKey,
			"wrapAndUnwrapSol": true,
		}).
		SetResult(&result).
		Post(baseURL + "/swap")
	if err != nil {
		return "", &monitorerrors.TransientRemoteError{Op: "get jupiter swap transaction", Err: err}
	}
	if resp.StatusCode() != 200 {
		return "", &monitorerrors.TransientRemoteError{Op: "get jupiter swap transaction", Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
	}
	if result.SwapTransaction == "" {
		return "", fmt.Errorf("jupiter swap response missing swapTransaction field")
	}
	return result.SwapTransaction, nil
}
