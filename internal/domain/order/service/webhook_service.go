package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/internal/pkg/metrics"

	"go.uber.org/zap"
)

// 回调处理结果，用作 metrics 标签
const (
	outcomeApplied   = "applied"
	outcomeNoop      = "noop"
	outcomeUnmatched = "unmatched"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
)

// WebhookService 支付网关回调
type WebhookService interface {
	// Handle 校验签名并处理一次回调投递，eventID 为空时不做去重
	// 返回 nil 表示可以向网关确认收到，包括找不到订单与状态机拒绝的情况
	Handle(ctx context.Context, body []byte, signature, eventID string) error
}

type webhookService struct {
	repo   repository.OrderRepository
	writer *orderWriter
	secret []byte
	dedup  EventDedup
	log    *zap.Logger
}

// NewWebhookService dedup 可以为 nil
func NewWebhookService(
	repo repository.OrderRepository,
	webhookSecret string,
	publisher EventPublisher,
	dedup EventDedup,
	log *zap.Logger,
) WebhookService {
	return &webhookService{
		repo:   repo,
		writer: newOrderWriter(repo, publisher, log),
		secret: []byte(webhookSecret),
		dedup:  dedup,
		log:    log,
	}
}

// SignPayload 计算报文的十六进制 HMAC-SHA256 签名
func SignPayload(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 常量时间比较签名
func VerifySignature(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

func (s *webhookService) Handle(ctx context.Context, body []byte, signature, eventID string) error {
	if !VerifySignature(s.secret, body, signature) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", outcomeRejected).Inc()
		return &ValidationError{Err: ErrInvalidSignature}
	}

	event, err := ParseWebhookEvent(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", outcomeRejected).Inc()
		return err
	}

	if eventID != "" && s.dedup != nil {
		seen, err := s.dedup.Seen(ctx, eventID)
		if err != nil {
			s.log.Warn("webhook dedup lookup failed", zap.String("event_id", eventID), zap.Error(err))
		} else if seen {
			metrics.WebhookEventsTotal.WithLabelValues(event.EventType(), outcomeDuplicate).Inc()
			s.log.Debug("duplicate webhook skipped", zap.String("event_id", eventID))
			return nil
		}
	}

	outcome, err := s.dispatch(ctx, event)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.EventType(), outcomeError).Inc()
		s.log.Error("webhook processing failed",
			zap.String("event", event.EventType()),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return err
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.EventType(), outcome).Inc()

	if eventID != "" && s.dedup != nil {
		if err := s.dedup.Mark(ctx, eventID); err != nil {
			s.log.Warn("webhook dedup mark failed", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return nil
}

func (s *webhookService) dispatch(ctx context.Context, event WebhookEvent) (string, error) {
	var (
		order  *model.Order
		mutate mutation
		err    error
	)

	switch e := event.(type) {
	case CapturedEvent:
		order, err = s.repo.GetByGatewayOrderID(ctx, e.GatewayOrderID)
		mutate = capturePayment(e.GatewayPaymentID)
	case FailedEvent:
		order, err = s.repo.GetByGatewayOrderID(ctx, e.GatewayOrderID)
		mutate = transitionTo(model.StatusFailed)
	case RefundProcessedEvent:
		order, err = s.repo.GetByGatewayPaymentID(ctx, e.GatewayPaymentID)
		mutate = markRefunded()
	default:
		return "", invalid(ErrUnsupportedEvent, "%T", event)
	}

	if repository.IsNotFound(err) {
		s.log.Info("webhook for unknown order ignored", zap.String("event", event.EventType()), zap.Error(err))
		return outcomeUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	_, changed, err := s.writer.apply(ctx, order, SourceWebhook, mutate)
	if err != nil {
		return "", err
	}
	if !changed {
		return outcomeNoop, nil
	}
	return outcomeApplied, nil
}
