package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// HTTPClient 基于 REST 接口的网关客户端，使用 Basic Auth 鉴权
type HTTPClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter // nil 表示不做客户端限速
	tracer     trace.Tracer
}

// NewHTTPClient 创建网关客户端
func NewHTTPClient(cfg config.GatewayConfig) *HTTPClient {
	c := &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		timeout:   cfg.Timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: otel.Tracer("storefront/gateway"),
	}
	if cfg.QPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), burst)
	}
	return c
}

type errorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *HTTPClient) FetchOrder(ctx context.Context, gatewayOrderID string) (*Order, error) {
	var order Order
	if err := c.get(ctx, "fetch_order", "/orders/"+url.PathEscape(gatewayOrderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) FetchPayments(ctx context.Context, gatewayOrderID string) ([]Payment, error) {
	var body struct {
		Count int       `json:"count"`
		Items []Payment `json:"items"`
	}
	if err := c.get(ctx, "fetch_payments", "/orders/"+url.PathEscape(gatewayOrderID)+"/payments", &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

func (c *HTTPClient) FetchPayment(ctx context.Context, gatewayPaymentID string) (*PaymentDetail, error) {
	var detail PaymentDetail
	if err := c.get(ctx, "fetch_payment", "/payments/"+url.PathEscape(gatewayPaymentID), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// get 执行一次 GET 调用，所有失败都转换为 *GatewayError
func (c *HTTPClient) get(ctx context.Context, op, path string, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		metrics.GatewayRequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
		metrics.GatewayRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return &GatewayError{Message: "rate limiter: " + waitErr.Error()}
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if reqErr != nil {
		return &GatewayError{Message: reqErr.Error()}
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(
		attribute.String("http.method", http.MethodGet),
		attribute.String("http.url", req.URL.String()),
	)

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return &GatewayError{Message: doErr.Error()}
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status > 299 {
		return newGatewayError(resp)
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return &GatewayError{StatusCode: status, Message: fmt.Sprintf("decode %s response: %v", op, decodeErr)}
	}
	return nil
}

func newGatewayError(resp *http.Response) *GatewayError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := http.StatusText(resp.StatusCode)
	var body errorBody
	if json.Unmarshal(raw, &body) == nil && body.Error.Description != "" {
		msg = body.Error.Description
	} else if len(raw) > 0 {
		msg = strings.TrimSpace(string(raw))
	}
	return &GatewayError{StatusCode: resp.StatusCode, Message: msg}
}

var _ Client = (*HTTPClient)(nil)
