package spot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"triarb-core/pkg/exchanges/common"
)

// Config holds Binance spot credentials and endpoint selection.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	BaseURL    string // overrides host selection; used by tests
	RecvWindow int64  // ms
}

// Client is a Binance spot order-entry client.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.binance.com"
		if cfg.Testnet {
			base = "https://testnet.binance.vision"
		}
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	client := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	client.timeSync = common.NewTimeSync(func() (int64, error) {
		return client.GetServerTime()
	})
	// 1200 weight/min for spot.
	client.rateLimiter = common.NewRateLimiter(1200, time.Minute)
	return client
}

// TimeSync exposes the clock-offset tracker so the caller can start
// periodic resync.
func (c *Client) TimeSync() *common.TimeSync {
	return c.timeSync
}

// SubmitOrder posts a signed order and decodes the ack. IOC orders carry
// their fill totals on the ack, so the result is final for this strategy.
func (c *Client) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return common.OrderResult{}, errors.New("binance: API key/secret required")
	}

	timestamp := time.Now().UnixMilli()
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		timestamp = c.timeSync.Now()
	}

	payload := canonicalParams(req, c.cfg.RecvWindow, timestamp)
	body := payload + "&signature=" + Sign(c.cfg.APISecret, payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/order", strings.NewReader(body))
	if err != nil {
		return common.OrderResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return common.OrderResult{}, err
	}
	defer res.Body.Close()

	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))
	}

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return common.OrderResult{}, fmt.Errorf("binance POST /api/v3/order status %d: %s", res.StatusCode, string(raw))
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return common.OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}

	executed := parseQty(resp.ExecutedQty)
	cumQuote := parseQty(resp.CummulativeQuoteQty)
	avg := 0.0
	if executed > 0 {
		avg = cumQuote / executed
	}
	return common.OrderResult{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		ClientID:        resp.ClientOrderID,
		Status:          mapStatus(resp.Status),
		ExecutedQty:     executed,
		AvgFillPrice:    avg,
	}, nil
}

// canonicalParams builds the fixed-order parameter string that is both the
// request body and the signed payload. Quantity uses 6 decimals, price 2;
// the server is strict about the signature matching the body byte-for-byte.
func canonicalParams(req common.OrderRequest, recvWindow, timestamp int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "symbol=%s", req.Symbol)
	fmt.Fprintf(&b, "&side=%s", req.Side)
	fmt.Fprintf(&b, "&type=%s", req.Type)
	fmt.Fprintf(&b, "&timeInForce=%s", req.TimeInForce)
	fmt.Fprintf(&b, "&quantity=%.6f", req.Qty)
	fmt.Fprintf(&b, "&price=%.2f", req.Price)
	if req.ClientID != "" {
		fmt.Fprintf(&b, "&newClientOrderId=%s", req.ClientID)
	}
	fmt.Fprintf(&b, "&recvWindow=%d", recvWindow)
	fmt.Fprintf(&b, "&timestamp=%d", timestamp)
	return b.String()
}

// GetServerTime fetches the exchange clock in epoch milliseconds.
func (c *Client) GetServerTime() (int64, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/v3/time")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server time status %d: %s", resp.StatusCode, string(b))
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

type orderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	Status              string `json:"status"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
}

func mapStatus(s string) common.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}

func parseQty(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
