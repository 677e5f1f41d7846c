package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"storefront/internal/domain/order/service"

	"github.com/google/uuid"
)

// webhook_replay 对同一笔支付并发重复投递签名回调，用来验证回调处理的幂等性
func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:8080", "Base URL of the service")
		secret       = flag.String("secret", "dev-webhook-secret", "Webhook signing secret")
		event        = flag.String("event", service.EventPaymentCaptured, "Event type: payment.captured, payment.failed, refund.processed")
		orderID      = flag.String("order", "", "Gateway order id")
		paymentID    = flag.String("payment", "", "Gateway payment id")
		deliveries   = flag.Int("n", 100, "Number of deliveries")
		sameEventID  = flag.Bool("same-event-id", false, "Reuse one event id for every delivery")
		signatureHdr = flag.String("signature-header", "X-Razorpay-Signature", "Signature header name")
		eventIDHdr   = flag.String("event-id-header", "X-Razorpay-Event-Id", "Event id header name")
	)
	flag.Parse()

	body, err := buildPayload(*event, *orderID, *paymentID)
	if err != nil {
		log.Fatal(err)
	}
	signature := service.SignPayload([]byte(*secret), body)
	sharedEventID := "evt_" + uuid.NewString()

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = *deliveries
	client := &http.Client{Transport: t, Timeout: 10 * time.Second}

	fmt.Printf("开始投递：%s x %d\n", *event, *deliveries)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = make(map[int]int)
		failed   int
	)
	start := time.Now()
	for i := 0; i < *deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eventID := sharedEventID
			if !*sameEventID {
				eventID = "evt_" + uuid.NewString()
			}
			code, err := deliver(client, *baseURL+"/webhooks/payment", body, map[string]string{
				*signatureHdr: signature,
				*eventIDHdr:   eventID,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			statuses[code]++
		}()
	}
	wg.Wait()

	fmt.Println("--------------------------------------------------")
	fmt.Printf("耗时: %v\n", time.Since(start))
	for code, n := range statuses {
		fmt.Printf("HTTP %d: %d\n", code, n)
	}
	fmt.Printf("请求失败: %d\n", failed)
	fmt.Println("--------------------------------------------------")
}

func buildPayload(event, orderID, paymentID string) ([]byte, error) {
	switch event {
	case service.EventPaymentCaptured, service.EventPaymentFailed:
		if orderID == "" {
			return nil, fmt.Errorf("%s requires -order", event)
		}
		return []byte(fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q}}}}`,
			event, paymentID, orderID)), nil
	case service.EventRefundProcessed:
		if paymentID == "" {
			return nil, fmt.Errorf("%s requires -payment", event)
		}
		return []byte(fmt.Sprintf(`{"event":%q,"payload":{"refund":{"entity":{"id":%q,"payment_id":%q}}}}`,
			event, "rfnd_"+uuid.NewString()[:8], paymentID)), nil
	default:
		return nil, fmt.Errorf("unsupported event %q", event)
	}
}

func deliver(client *http.Client, url string, body []byte, headers map[string]string) (int, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
