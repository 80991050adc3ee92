package trader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oreoft/meme-trade-bot/internal/addressnormalizer"
	"github.com/oreoft/meme-trade-bot/internal/marketdata"
	"github.com/oreoft/meme-trade-bot/internal/monitorerrors"
	"github.com/oreoft/meme-trade-bot/internal/store"
	"github.com/oreoft/meme-trade-bot/internal/walletkey"
	"github.com/oreoft/meme-trade-bot/pkg/txlistener"
)

// serviceFeeSOL is the default network fee assumed when a transaction
// simulation doesn't report one.
const serviceFeeSOL = 0.000896

// rentReserveSOL is kept unspent on an all-in buy so the new token account's
// rent is covered without touching the fresh purchase.
const rentReserveSOL = 0.0021

var retryableTransferSubstrings = []string{
	"blockhash not found",
	"timeout",
	"connection error",
	"network error",
	"rpc error",
	"insufficient compute budget",
}

// TradeResult is the outcome of a swap attempt.
type TradeResult struct {
	Success bool
	TxHash  string
	Err     string
}

// TransferResult is the outcome of a transfer or transfer preview.
type TransferResult struct {
	Amount       float64
	AmountUSD    float64
	Fee          float64
	AfterBalance float64
	TxHash       string
	Err          string
	ProgramLogs  []string
}

// Trader executes swaps and transfers for a single wallet.
type Trader struct {
	wallet   *walletkey.Keypair
	rpc      *RPCClient
	jupiter  *JupiterClient
	listener *txlistener.TxListener
	st       *store.Store
	market   *marketdata.Client

	sleep func(time.Duration)
}

// NewTrader builds a Trader for wallet, using rpc and jupiter for chain
// access and st/market for decimals and pricing lookups.
func NewTrader(wallet *walletkey.Keypair, rpc *RPCClient, jupiter *JupiterClient, st *store.Store, market *marketdata.Client) *Trader {
	return &Trader{
		wallet:   wallet,
		rpc:      rpc,
		jupiter:  jupiter,
		listener: txlistener.NewTxListener(rpc),
		st:       st,
		market:   market,
		sleep:    time.Sleep,
	}
}

// Decimals resolves a token's decimal count: native SOL is always 9, a
// monitored token uses its cached value, otherwise the trader falls back
// to token metadata and finally a default of 9.
func (t *Trader) Decimals(ctx context.Context, tokenAddress string) (int, error) {
	if addressnormalizer.IsNative(tokenAddress) {
		return 9, nil
	}

	monitors, err := t.st.ListSimpleMonitors()
	if err == nil {
		for _, m := range monitors {
			if m.TokenAddress == tokenAddress && m.TokenDecimals > 0 {
				return m.TokenDecimals, nil
			}
		}
	}

	meta, err := t.market.GetTokenMeta(addressnormalizer.Normalize(tokenAddress))
	if err == nil && meta.Decimals > 0 {
		return meta.Decimals, nil
	}
	log.Warn().Str("token", tokenAddress).Msg("token decimals unresolved, defaulting to 9")
	return 9, nil
}

// NativeBalance returns the wallet's SOL balance.
func (t *Trader) NativeBalance(ctx context.Context) (float64, error) {
	lamports, err := t.rpc.GetBalance(ctx, t.wallet.Public)
	if err != nil {
		return 0, fmt.Errorf("get native balance: %w", err)
	}
	return float64(lamports) / 1e9, nil
}

// TokenBalance returns the wallet's balance of tokenAddress, in UI units.
func (t *Trader) TokenBalance(ctx context.Context, tokenAddress string) (float64, error) {
	if addressnormalizer.IsNative(tokenAddress) {
		return t.NativeBalance(ctx)
	}

	accounts, err := t.rpc.GetTokenAccountsByOwner(ctx, t.wallet.Public, tokenAddress)
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	acct := accounts[0]
	amount := decimal.NewFromInt(int64(acct.Amount))
	scale := decimal.New(1, int32(acct.Decimals))
	result, _ := amount.DivRound(scale, 12).Float64()
	return result, nil
}

// Quote fetches a Jupiter swap quote.
func (t *Trader) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (*Quote, error) {
	return t.jupiter.GetQuote(ctx, inputMint, outputMint, amount)
}

// executeSwap builds, signs, and submits quote, retrying up to 5 times
// with a 5 second pause between attempts. An insufficient-lamports error
// is terminal and is not retried.
func (t *Trader) executeSwap(ctx context.Context, quote *Quote) (string, error) {
	rawTx, err := t.jupiter.GetSwapTransaction(ctx, quote, t.wallet.Public)
	if err != nil {
		return "", err
	}
	signedTx, err := signTransaction(rawTx, t.wallet.Private)
	if err != nil {
		return "", fmt.Errorf("sign swap transaction: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		sig, sendErr := t.rpc.SendTransaction(ctx, signedTx, false)
		if sendErr == nil {
			return sig, nil
		}
		if strings.Contains(sendErr.Error(), "insufficient lamports") {
			return "", &monitorerrors.TradeError{Op: "execute swap", ProgramLogs: extractProgramLogs(sendErr.Error()), Err: sendErr}
		}
		lastErr = sendErr
		log.Warn().Err(sendErr).Int("attempt", attempt+1).Msg("swap send attempt failed, retrying")
		if attempt < 4 {
			t.sleep(5 * time.Second)
		}
	}
	return "", &monitorerrors.TradeError{Op: "execute swap", ProgramLogs: extractProgramLogs(lastErr.Error()), Err: lastErr}
}

// SellTokenForNative swaps percentage of the wallet's tokenAddress holding
// into native SOL via Jupiter.
func (t *Trader) SellTokenForNative(ctx context.Context, tokenAddress string, percentage float64) TradeResult {
	balance, err := t.TokenBalance(ctx, tokenAddress)
	if err != nil {
		return TradeResult{Err: err.Error()}
	}
	if balance <= 0 {
		return TradeResult{Err: "token balance is zero, nothing to sell"}
	}

	decimals, err := t.Decimals(ctx, tokenAddress)
	if err != nil {
		return TradeResult{Err: err.Error()}
	}
	sellAmount := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(percentage))
	sellLamports := sellAmount.Mul(decimal.New(1, int32(decimals))).IntPart()

	quote, err := t.Quote(ctx, tokenAddress, addressnormalizer.NativeMint, uint64(sellLamports))
	if err != nil {
		return TradeResult{Err: fmt.Sprintf("get sell quote: %v", err)}
	}

	sig, err := t.executeSwap(ctx, quote)
	if err != nil {
		return TradeResult{Err: err.Error()}
	}
	return TradeResult{Success: true, TxHash: sig}
}

// BuyTokenForNative swaps percentage of the wallet's native SOL into
// tokenAddress via Jupiter. An all-in (percentage == 1) buy reserves
// rentReserveSOL so the new token account's rent doesn't starve the
// wallet.
func (t *Trader) BuyTokenForNative(ctx context.Context, tokenAddress string, percentage float64) TradeResult {
	solBalance, err := t.NativeBalance(ctx)
	if err != nil {
		return TradeResult{Err: err.Error()}
	}

	buyAmount := solBalance * percentage
	if percentage == 1 {
		buyAmount -= rentReserveSOL
	}
	if solBalance <= 0 || buyAmount <= 0 {
		return TradeResult{Err: "native balance insufficient to buy"}
	}

	buyLamports := decimal.NewFromFloat(buyAmount).Mul(decimal.New(1, 9)).IntPart()

	quote, err := t.Quote(ctx, addressnormalizer.NativeMint, tokenAddress, uint64(buyLamports))
	if err != nil {
		return TradeResult{Err: fmt.Sprintf("get buy quote: %v", err)}
	}

	sig, err := t.executeSwap(ctx, quote)
	if err != nil {
		return TradeResult{Err: err.Error()}
	}
	return TradeResult{Success: true, TxHash: sig}
}

// SwapExact signs and submits quote as-is, for swaps between two arbitrary
// mints (the swing monitor's watch/trade token pair) where neither leg is
// necessarily native SOL.
func (t *Trader) SwapExact(ctx context.Context, quote *Quote) TradeResult {
	sig, err := t.executeSwap(ctx, quote)
	if err != nil {
		return TradeResult{Err: err.Error()}
	}
	return TradeResult{Success: true, TxHash: sig}
}

// extractProgramLogs pulls every "Program log:" line out of an error
// string so trade failures surface the on-chain reason.
func extractProgramLogs(errStr string) []string {
	var logs []string
	for _, line := range strings.Split(errStr, "\n") {
		if idx := strings.Index(line, "Program log:"); idx >= 0 {
			logs = append(logs, strings.TrimSpace(line[idx+len("Program log:"):]))
		}
	}
	return logs
}

// validateBalance returns an error if amount exceeds the wallet's current
// balance of tokenAddress.
func (t *Trader) validateBalance(ctx context.Context, tokenAddress string, amount float64) error {
	balance, err := t.TokenBalance(ctx, tokenAddress)
	if err != nil {
		return err
	}
	if amount > balance {
		return fmt.Errorf("balance insufficient, current balance: %v", balance)
	}
	return nil
}

func (t *Trader) priceUSD(tokenAddress string) float64 {
	md, err := t.market.GetMarketData(addressnormalizer.Normalize(tokenAddress))
	if err != nil {
		return 0
	}
	return md.Price
}

// buildTransfer assembles and signs a transfer transaction for either
// native SOL or an SPL token. SPL transfers require the destination to
// already hold a token account for tokenAddress; creating one on the
// destination's behalf is out of scope.
func (t *Trader) buildTransfer(ctx context.Context, tokenAddress, toAddress string, amount float64) (string, error) {
	blockhash, err := t.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	if addressnormalizer.IsNative(tokenAddress) {
		lamports := decimal.NewFromFloat(amount).Mul(decimal.New(1, 9)).IntPart()
		raw, err := buildSystemTransfer(t.wallet.Public, toAddress, uint64(lamports), blockhash)
		if err != nil {
			return "", err
		}
		return signTransaction(raw, t.wallet.Private)
	}

	decimals, err := t.Decimals(ctx, tokenAddress)
	if err != nil {
		return "", err
	}
	sourceAccounts, err := t.rpc.GetTokenAccountsByOwner(ctx, t.wallet.Public, tokenAddress)
	if err != nil {
		return "", fmt.Errorf("resolve source token account: %w", err)
	}
	if len(sourceAccounts) == 0 {
		return "", fmt.Errorf("wallet holds no token account for %s", tokenAddress)
	}
	destAccounts, err := t.rpc.GetTokenAccountsByOwner(ctx, toAddress, tokenAddress)
	if err != nil {
		return "", fmt.Errorf("resolve destination token account: %w", err)
	}
	if len(destAccounts) == 0 {
		return "", fmt.Errorf("destination %s has no existing token account for %s", toAddress, tokenAddress)
	}

	rawAmount := decimal.NewFromFloat(amount).Mul(decimal.New(1, int32(decimals))).IntPart()
	raw, err := buildTokenTransfer(t.wallet.Public, sourceAccounts[0].Address, destAccounts[0].Address, uint64(rawAmount), blockhash)
	if err != nil {
		return "", err
	}
	return signTransaction(raw, t.wallet.Private)
}

func (t *Trader) calculateTransferResult(tokenAddress string, amount, fee float64, txHash string) (TransferResult, error) {
	amountUSD := amount * t.priceUSD(tokenAddress)

	nativeBalance, err := t.NativeBalance(context.Background())
	if err != nil {
		return TransferResult{}, err
	}
	afterBalance := nativeBalance - fee
	if addressnormalizer.IsNative(tokenAddress) {
		afterBalance -= amount
	}

	return TransferResult{
		Amount:       amount,
		AmountUSD:    amountUSD,
		Fee:          fee,
		AfterBalance: afterBalance,
		TxHash:       txHash,
	}, nil
}

// TransferPreview simulates a transfer without submitting it, returning
// the projected fee and resulting balance.
func (t *Trader) TransferPreview(ctx context.Context, tokenAddress, toAddress string, amount float64) TransferResult {
	if err := t.validateBalance(ctx, tokenAddress, amount); err != nil {
		return TransferResult{Err: err.Error()}
	}

	signed, err := t.buildTransfer(ctx, tokenAddress, toAddress, amount)
	if err != nil {
		return TransferResult{Err: err.Error(), ProgramLogs: extractProgramLogs(err.Error())}
	}

	sim, err := t.rpc.SimulateTransaction(ctx, signed)
	if err != nil {
		return TransferResult{Err: err.Error(), ProgramLogs: extractProgramLogs(err.Error())}
	}
	if sim.Err != "" {
		return TransferResult{Err: sim.Err, ProgramLogs: sim.Logs}
	}

	fee := serviceFeeSOL
	if sim.FeeLamports > 0 {
		fee = float64(sim.FeeLamports) / 1e9
	}
	result, err := t.calculateTransferResult(tokenAddress, amount, fee, "")
	if err != nil {
		return TransferResult{Err: err.Error()}
	}
	result.ProgramLogs = sim.Logs
	return result
}

// Transfer submits a transfer, retrying retryable failures up to 3 times
// with exponential backoff.
func (t *Trader) Transfer(ctx context.Context, tokenAddress, toAddress string, amount float64) TransferResult {
	const maxRetries = 3

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := t.validateBalance(ctx, tokenAddress, amount); err != nil {
			return TransferResult{Err: err.Error()}
		}

		signed, err := t.buildTransfer(ctx, tokenAddress, toAddress, amount)
		if err != nil {
			return TransferResult{Err: err.Error(), ProgramLogs: extractProgramLogs(err.Error())}
		}

		sig, err := t.rpc.SendTransaction(ctx, signed, true)
		if err == nil {
			result, calcErr := t.calculateTransferResult(tokenAddress, amount, serviceFeeSOL, sig)
			if calcErr != nil {
				return TransferResult{Err: calcErr.Error()}
			}
			return result
		}

		lastErr = err
		lowered := strings.ToLower(err.Error())
		retryable := false
		for _, substr := range retryableTransferSubstrings {
			if strings.Contains(lowered, substr) {
				retryable = true
				break
			}
		}
		if attempt < maxRetries-1 && retryable {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("transfer attempt failed, retrying")
			t.sleep(time.Duration(1<<attempt) * time.Second)
			continue
		}
		break
	}

	return TransferResult{Err: lastErr.Error(), ProgramLogs: extractProgramLogs(lastErr.Error())}
}

// WaitForConfirmation blocks until signature confirms, surfacing on-chain
// failure as an error.
func (t *Trader) WaitForConfirmation(ctx context.Context, signature string) (*txlistener.Confirmation, error) {
	return t.listener.WaitForTransaction(ctx, signature)
}
