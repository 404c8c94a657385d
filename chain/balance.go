// Package chain implements the follower balance probe: reads a
// stablecoin balance through a JSON-RPC provider's ERC-20 balanceOf,
// breaker-protected and error-classified. The JSON-RPC envelope and
// http.Client shape are grounded on api/polygonscan.go's
// RPCRequest/RPCResponse pattern (talking to Polygon RPC by hand rather
// than through an SDK); the calldata encoding uses go-ethereum's
// common/crypto packages the way api/clob.go and
// analytics-worker/syncer/auto_redeemer.go already do for addresses and
// hashes.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/breaker"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/errtaxonomy"
)

const (
	// BreakerName is the registry key for the balance probe's breaker,
	BreakerName             = "polygon-balance"
	balanceBreakerThreshold = 3
	balanceBreakerRecovery  = 30 * time.Second

	// balanceOf(address) selector: first 4 bytes of
	// keccak256("balanceOf(address)").
	balanceOfSelector = "70a08231"

	usdcDecimals = 6
)

type rpcRequest struct {
	JsonRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	JsonRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Result  string `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// BalanceProbe reads the follower's stablecoin balance from chain.
type BalanceProbe struct {
	httpClient      *http.Client
	rpcURL          string
	contractAddress common.Address
	breakers        *breaker.Registry
}

// New constructs a BalanceProbe against the given RPC endpoint and
// ERC-20 contract address, registering (or reusing) the
// "polygon-balance" breaker in the shared registry.
func New(rpcURL, contractAddress string, breakers *breaker.Registry) *BalanceProbe {
	return &BalanceProbe{
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		rpcURL:          rpcURL,
		contractAddress: common.HexToAddress(contractAddress),
		breakers:        breakers,
	}
}

// GetBalance returns the follower's balance in decimal stablecoin units
// (i.e. already divided by 10^6). Any failure under the breaker is
// re-raised as an API error carrying a redacted address; a breaker
// fast-fail is returned as its CIRCUIT_BREAKER error.
func (p *BalanceProbe) GetBalance(ctx context.Context, address string) (float64, error) {
	b := p.breakers.GetBreaker(BreakerName, balanceBreakerThreshold, balanceBreakerRecovery)

	var result float64
	err := b.Call(func() error {
		raw, err := p.balanceOf(ctx, address)
		if err != nil {
			return err
		}
		result = microsToDecimal(raw)
		return nil
	})
	if err != nil {
		if classified, ok := errtaxonomy.As(err); ok && classified.Kind == errtaxonomy.CircuitBreakerKind {
			return 0, err // breaker fast-fail already classified
		}
		return 0, errtaxonomy.NewAPI(
			"BALANCE_PROBE_FAILED",
			fmt.Sprintf("failed to read balance for %s", redactAddress(address)),
			err,
		)
	}
	return result, nil
}

func (p *BalanceProbe) balanceOf(ctx context.Context, address string) (*big.Int, error) {
	holder := common.HexToAddress(address)
	// pad the 20-byte address into a 32-byte word.
	hexAddr := strings.ToLower(strings.TrimPrefix(holder.Hex(), "0x"))
	calldata := "0x" + balanceOfSelector + strings.Repeat("0", 24) + hexAddr

	req := rpcRequest{
		JsonRPC: "2.0",
		Method:  "eth_call",
		Params: []interface{}{
			map[string]string{
				"to":   p.contractAddress.Hex(),
				"data": calldata,
			},
			"latest",
		},
		ID: 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errtaxonomy.NewValidation("MARSHAL_FAILED", err.Error(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, errtaxonomy.NewValidation("BUILD_REQUEST_FAILED", err.Error(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errtaxonomy.NewNetwork("RPC_REQUEST_FAILED", err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errtaxonomy.NewNetwork("RPC_READ_FAILED", err.Error(), err)
	}

	if resp.StatusCode >= 500 {
		return nil, errtaxonomy.NewAPI("RPC_5XX", string(respBody), nil)
	}
	if resp.StatusCode >= 400 {
		e := errtaxonomy.NewAPI("RPC_4XX", string(respBody), nil)
		e.IsRetryable = false
		return nil, e
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, errtaxonomy.NewAPI("RPC_UNMARSHAL_FAILED", err.Error(), err)
	}
	if rpcResp.Error != nil {
		e := errtaxonomy.NewAPI("RPC_ERROR", rpcResp.Error.Message, nil)
		e.IsRetryable = false
		return nil, e
	}
	if rpcResp.Result == "" || rpcResp.Result == "0x" {
		return big.NewInt(0), nil
	}

	value := new(big.Int)
	if _, ok := value.SetString(strings.TrimPrefix(rpcResp.Result, "0x"), 16); !ok {
		return nil, errtaxonomy.NewAPI("RPC_BAD_RESULT", rpcResp.Result, nil)
	}
	return value, nil
}

func microsToDecimal(raw *big.Int) float64 {
	scale := new(big.Float).SetFloat64(1)
	for i := 0; i < usdcDecimals; i++ {
		scale.Mul(scale, big.NewFloat(10))
	}
	f := new(big.Float).SetInt(raw)
	f.Quo(f, scale)
	result, _ := f.Float64()
	return result
}

// redactAddress keeps the first 6 and last 4 characters of an address.
func redactAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
