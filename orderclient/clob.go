package orderclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// APICreds are the exchange-issued L2 credentials used to authenticate
// order submission, mirroring api/clob.go's APICreds (Quentinlac-poly).
type APICreds struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// CLOBClient is the concrete order-submission Client, posting signed
// orders to the exchange's central limit order book HTTP API. Grounded
// on api/clob.go's postOrder/addL2Headers (Quentinlac-poly): browser
// headers to avoid edge blocking, an HMAC-signed L2 auth header per
// request.
type CLOBClient struct {
	baseURL    string
	httpClient *http.Client
	creds      APICreds
	funder     string
}

// NewCLOBClient constructs a CLOBClient against baseURL, authenticated
// with the given API credentials and funding wallet address.
func NewCLOBClient(baseURL string, creds APICreds, funder string) *CLOBClient {
	return &CLOBClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		creds:      creds,
		funder:     funder,
	}
}

type wireOrder struct {
	TokenID   string `json:"tokenId"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Funder    string `json:"funder"`
	OrderType string `json:"orderType"`
}

type wireOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	TxHash  string `json:"transactionHash"`
	Error   string `json:"error"`
}

// PostOrder submits a fill-or-kill market order.
func (c *CLOBClient) PostOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	return c.postOrder(ctx, req, "FOK", 0)
}

// PostLimitOrder submits a good-til-cancelled limit order at
// limitPrice, used by the execution engine's high-price sell fallback.
func (c *CLOBClient) PostLimitOrder(ctx context.Context, req OrderRequest, limitPrice float64) (OrderResult, error) {
	return c.postOrder(ctx, req, "GTC", limitPrice)
}

func (c *CLOBClient) postOrder(ctx context.Context, req OrderRequest, orderType string, limitPrice float64) (OrderResult, error) {
	price := req.Price
	if orderType == "GTC" && limitPrice > 0 {
		price = limitPrice
	}

	payload := wireOrder{
		TokenID:   req.Asset,
		Side:      string(req.Side),
		Size:      strconv.FormatFloat(req.Size, 'f', -1, 64),
		Price:     strconv.FormatFloat(price, 'f', -1, 64),
		Funder:    c.funder,
		OrderType: orderType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OrderResult{}, Classify(fmt.Errorf("marshal order: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return OrderResult{}, Classify(fmt.Errorf("build order request: %w", err))
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	c.addL2Headers(httpReq, string(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return OrderResult{}, Classify(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return OrderResult{}, Classify(fmt.Errorf("post order failed: %d %s", resp.StatusCode, string(respBody)))
	}

	var wire wireOrderResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return OrderResult{}, Classify(fmt.Errorf("decode order response: %w", err))
	}
	if !wire.Success {
		return OrderResult{}, Classify(fmt.Errorf("order rejected: %s", wire.Error))
	}

	return OrderResult{OrderID: wire.OrderID, TxHash: wire.TxHash}, nil
}

// addL2Headers signs timestamp+method+path+body and attaches the
// exchange's L2 auth headers, mirroring api/clob.go's
// addL2Headers/hmacSign (Quentinlac-poly) exactly, including
// POLY_ADDRESS.
func (c *CLOBClient) addL2Headers(req *http.Request, body string) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + req.Method + req.URL.Path + body
	signature := hmacSign(message, c.creds.Secret)

	req.Header.Set("POLY_ADDRESS", c.funder)
	req.Header.Set("POLY_API_KEY", c.creds.APIKey)
	req.Header.Set("POLY_PASSPHRASE", c.creds.Passphrase)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_SIGNATURE", signature)
}

// hmacSign signs message with secret, base64-URL-encoded on output. The
// secret itself is treated as base64 (URL-safe, then standard, then
// raw bytes as a last resort) before being used as the HMAC key, since
// the exchange issues secrets URL-safe-base64-encoded.
func hmacSign(message, secret string) string {
	key, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		key, err = base64.StdEncoding.DecodeString(secret)
		if err != nil {
			key = []byte(secret)
		}
	}

	h := hmac.New(sha256.New, key)
	h.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}
