// Package trader executes Solana swaps and transfers on behalf of a
// monitor's wallet: Jupiter-routed swaps between a token and native SOL,
// and direct SOL/SPL transfers, all signed locally with the wallet's
// ed25519 key.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oreoft/meme-trade-bot/internal/configregistry"
	"github.com/oreoft/meme-trade-bot/internal/monitorerrors"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// RPCClient is a minimal Solana JSON-RPC client covering the handful of
// methods the trader needs: balance reads, blockhash, send/simulate, and
// signature-status polling.
type RPCClient struct {
	http *resty.Client

	mu  sync.RWMutex
	url string
}

// NewRPCClient builds an RPCClient whose endpoint tracks the registry's
// RPC_URL setting.
func NewRPCClient(registry *configregistry.Registry) *RPCClient {
	c := &RPCClient{http: resty.New().SetTimeout(15 * time.Second)}
	c.loadURL(registry)
	registry.Register(&rpcClientSubscriber{client: c, registry: registry})
	return c
}

type rpcClientSubscriber struct {
	client   *RPCClient
	registry *configregistry.Registry
}

func (s *rpcClientSubscriber) RefreshConfig() error {
	s.client.loadURL(s.registry)
	return nil
}

func (c *RPCClient) loadURL(registry *configregistry.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = registry.GetString("RPC_URL", "https://api.mainnet-beta.solana.com")
}

func (c *RPCClient) endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	var resp rpcResponse
	r, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&resp).Post(c.endpoint())
	if err != nil {
		return &monitorerrors.TransientRemoteError{Op: method, Err: err}
	}
	if r.StatusCode() != 200 {
		return &monitorerrors.TransientRemoteError{Op: method, Err: fmt.Errorf("http status %d: %s", r.StatusCode(), r.String())}
	}
	if resp.Error != nil {
		return &monitorerrors.TransientRemoteError{Op: method, Err: resp.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// GetBalance returns the native SOL balance of pubkey, in lamports.
func (c *RPCClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{pubkey, map[string]string{"commitment": "confirmed"}}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// TokenAccount describes one SPL token account returned by
// getTokenAccountsByOwner.
type TokenAccount struct {
	Address  string
	Mint     string
	Amount   uint64
	Decimals uint8
}

// GetTokenAccountsByOwner returns every token account owner holds for the
// given mint.
func (c *RPCClient) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error) {
	var result struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals uint8  `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}

	params := []any{owner, map[string]string{"mint": mint}, map[string]string{"encoding": "jsonParsed"}}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		var amount uint64
		fmt.Sscanf(v.Account.Data.Parsed.Info.TokenAmount.Amount, "%d", &amount)
		accounts = append(accounts, TokenAccount{
			Address:  v.Pubkey,
			Mint:     v.Account.Data.Parsed.Info.Mint,
			Amount:   amount,
			Decimals: v.Account.Data.Parsed.Info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}

// GetLatestBlockhash returns the current blockhash, used as a transaction's
// recent-blockhash field.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []any{map[string]string{"commitment": "confirmed"}}, &result); err != nil {
		return "", err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a base64-encoded signed transaction and returns
// its signature.
func (c *RPCClient) SendTransaction(ctx context.Context, rawBase64 string, skipPreflight bool) (string, error) {
	var signature string
	params := []any{rawBase64, map[string]any{
		"encoding":            "base64",
		"skipPreflight":       skipPreflight,
		"preflightCommitment": "processed",
		"maxRetries":          0,
	}}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// SimulationResult is the outcome of a dry-run transaction simulation.
type SimulationResult struct {
	FeeLamports uint64
	Err         string
	Logs        []string
}

// SimulateTransaction dry-runs a base64-encoded transaction without
// submitting it.
func (c *RPCClient) SimulateTransaction(ctx context.Context, rawBase64 string) (*SimulationResult, error) {
	var result struct {
		Value struct {
			Err  any      `json:"err"`
			Logs []string `json:"logs"`
		} `json:"value"`
	}
	params := []any{rawBase64, map[string]any{"encoding": "base64", "sigVerify": false}}
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}

	sim := &SimulationResult{Logs: result.Value.Logs}
	if result.Value.Err != nil {
		if b, err := json.Marshal(result.Value.Err); err == nil {
			sim.Err = string(b)
		}
	}
	return sim, nil
}

// SignatureStatus satisfies pkg/txlistener.StatusChecker, mapping
// getSignatureStatuses onto the confirmed/finalized commitment checks the
// listener understands.
func (c *RPCClient) SignatureStatus(ctx context.Context, signature string) (status string, txErr error, ok bool, err error) {
	var result struct {
		Value []*struct {
			Err                any    `json:"err"`
			ConfirmationStatus string `json:"confirmationStatus"`
		} `json:"value"`
	}
	params := []any{[]string{signature}, map[string]bool{"searchTransactionHistory": true}}
	if callErr := c.call(ctx, "getSignatureStatuses", params, &result); callErr != nil {
		return "", nil, false, callErr
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return "", nil, false, nil
	}
	entry := result.Value[0]
	if entry.Err != nil {
		if b, marshalErr := json.Marshal(entry.Err); marshalErr == nil {
			txErr = fmt.Errorf("on-chain error: %s", string(b))
		}
	}
	return entry.ConfirmationStatus, txErr, true, nil
}
