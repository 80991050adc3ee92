// Package marketdata is the BirdEye-backed token information client: spot
// price/market-cap lookups, token metadata (permanently cached through
// internal/store), and wallet holdings listings. It subscribes to the
// configregistry so API key and chain header changes take effect without a
// restart.
package marketdata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/oreoft/meme-trade-bot/internal/configregistry"
	"github.com/oreoft/meme-trade-bot/internal/monitorerrors"
	"github.com/oreoft/meme-trade-bot/internal/store"
)

const (
	defiBaseURL   = "https://public-api.birdeye.so/defi/v3"
	walletBaseURL = "https://public-api.birdeye.so/v1/wallet"
)

// MarketData holds a point-in-time price snapshot for a token.
type MarketData struct {
	Price             float64 `json:"price"`
	MarketCap         float64 `json:"market_cap"`
	Liquidity         float64 `json:"liquidity"`
	TotalSupply       float64 `json:"total_supply"`
	CirculatingSupply float64 `json:"circulating_supply"`
	FullyDilutedValue float64 `json:"fdv"`
}

// TokenMeta holds static token identity information.
type TokenMeta struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logo_uri"`
}

// WalletTokenList is a wallet's token holdings snapshot.
type WalletTokenList struct {
	Wallet   string            `json:"wallet"`
	TotalUSD float64           `json:"totalUsd"`
	Items    []WalletTokenItem `json:"items"`
}

// WalletTokenItem is one token balance within a WalletTokenList.
type WalletTokenItem struct {
	Address  string  `json:"address"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	UIAmount float64 `json:"uiAmount"`
	PriceUSD float64 `json:"priceUsd"`
	ValueUSD float64 `json:"valueUsd"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Client is the BirdEye API client.
type Client struct {
	http     *resty.Client
	st       *store.Store
	registry *configregistry.Registry

	defiBaseURL   string
	walletBaseURL string

	mu      sync.RWMutex
	headers map[string]string
}

// New builds a Client and registers it with registry for config refreshes.
func New(st *store.Store, registry *configregistry.Registry) *Client {
	c := &Client{
		http:          resty.New().SetTimeout(10 * time.Second),
		st:            st,
		registry:      registry,
		defiBaseURL:   defiBaseURL,
		walletBaseURL: walletBaseURL,
	}
	c.loadHeaders()
	registry.Register(c)
	return c
}

// SetBaseURLsForTest overrides the BirdEye endpoint URLs, for pointing the
// client at an httptest.Server from another package's tests.
func (c *Client) SetBaseURLsForTest(defi, wallet string) {
	c.defiBaseURL = defi
	c.walletBaseURL = wallet
}

func (c *Client) loadHeaders() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = map[string]string{
		"X-API-KEY": c.registry.GetString("API_KEY", ""),
		"accept":    "application/json",
		"x-chain":   c.registry.GetString("CHAIN_HEADER", "solana"),
	}
}

// RefreshConfig satisfies configregistry.Subscriber, reloading the request
// headers from the current API key and chain header.
func (c *Client) RefreshConfig() error {
	c.loadHeaders()
	log.Info().Msg("birdeye client config refreshed")
	return nil
}

func (c *Client) request() *resty.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http.R().SetHeaders(c.headers)
}

// GetMarketData fetches the current price/market-cap snapshot for address.
func (c *Client) GetMarketData(address string) (*MarketData, error) {
	var env apiEnvelope
	resp, err := c.request().
		SetQueryParam("address", address).
		SetResult(&env).
		Get(c.defiBaseURL + "/token/market-data")
	if err != nil {
		return nil, &monitorerrors.TransientRemoteError{Op: "get market data", Err: err}
	}
	if resp.StatusCode() != http.StatusOK || !env.Success {
		return nil, &monitorerrors.TransientRemoteError{
			Op:  "get market data",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	var md MarketData
	if err := json.Unmarshal(env.Data, &md); err != nil {
		return nil, fmt.Errorf("decode market data for %s: %w", address, err)
	}
	return &md, nil
}

// GetTokenMeta returns token metadata, preferring the permanent cache and
// falling back to a live fetch on a miss.
func (c *Client) GetTokenMeta(address string) (*TokenMeta, error) {
	cached, err := c.st.GetTokenMeta(address)
	if err != nil {
		return nil, fmt.Errorf("read token meta cache for %s: %w", address, err)
	}
	if cached != nil {
		var meta TokenMeta
		if err := json.Unmarshal([]byte(cached.Data), &meta); err == nil {
			return &meta, nil
		}
		log.Warn().Str("address", address).Msg("cached token meta unparsable, refetching")
	}

	var env apiEnvelope
	resp, err := c.request().
		SetQueryParam("address", address).
		SetResult(&env).
		Get(c.defiBaseURL + "/token/meta-data/single")
	if err != nil {
		return nil, &monitorerrors.TransientRemoteError{Op: "get token meta", Err: err}
	}
	if resp.StatusCode() != http.StatusOK || !env.Success {
		return nil, &monitorerrors.TransientRemoteError{
			Op:  "get token meta",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	var meta TokenMeta
	if err := json.Unmarshal(env.Data, &meta); err != nil {
		return nil, fmt.Errorf("decode token meta for %s: %w", address, err)
	}

	if err := c.st.PutTokenMeta(&store.TokenMetaCache{
		Address:   address,
		Data:      string(env.Data),
		UpdatedAt: float64(time.Now().Unix()),
	}); err != nil {
		log.Error().Err(err).Str("address", address).Msg("cache token meta failed")
	}
	return &meta, nil
}

// GetWalletTokenList returns the token holdings of walletAddress.
func (c *Client) GetWalletTokenList(walletAddress string) (*WalletTokenList, error) {
	var env apiEnvelope
	resp, err := c.request().
		SetQueryParam("wallet", walletAddress).
		SetResult(&env).
		Get(c.walletBaseURL + "/token_list")
	if err != nil {
		return nil, &monitorerrors.TransientRemoteError{Op: "get wallet token list", Err: err}
	}
	if resp.StatusCode() != http.StatusOK || !env.Success {
		return nil, &monitorerrors.TransientRemoteError{
			Op:  "get wallet token list",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	var list WalletTokenList
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return nil, fmt.Errorf("decode wallet token list for %s: %w", walletAddress, err)
	}
	return &list, nil
}
