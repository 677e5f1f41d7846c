package handler

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/service"
	"storefront/internal/domain/order/statemachine"
	"storefront/internal/pkg/middleware"
	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody 回调报文上限
const maxWebhookBody = 1 << 20

type OrderHandler struct {
	orders   service.OrderService
	webhooks service.WebhookService
	syncer   service.ReconcileService
	opts     Options
	log      *zap.Logger
}

// Options 请求头名称与批量上限
type Options struct {
	SignatureHeader string
	EventIDHeader   string
	MaxBatchSize    int
}

func NewOrderHandler(
	orders service.OrderService,
	webhooks service.WebhookService,
	syncer service.ReconcileService,
	opts Options,
	log *zap.Logger,
) *OrderHandler {
	return &OrderHandler{orders: orders, webhooks: webhooks, syncer: syncer, opts: opts, log: log}
}

// HandleWebhook 网关回调，签名基于原始报文，必须在任何解析之前读取
func (h *OrderHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read body"})
		return
	}

	err = h.webhooks.Handle(c.Request.Context(), body, c.GetHeader(h.opts.SignatureHeader), c.GetHeader(h.opts.EventIDHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case service.IsValidationError(err):
		h.log.Warn("webhook rejected", zap.String("trace_id", middleware.TraceID(c)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
	}
}

type UpdateStatusInput struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), input.Status)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}

	h.log.Info("order status updated manually",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("operator", middleware.OperatorID(c)),
	)
	response.Success(c, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// TransitionsResponse 当前状态与允许流转的目标状态
type TransitionsResponse struct {
	Status   model.Status   `json:"status"`
	Next     []model.Status `json:"next"`
	Terminal bool           `json:"terminal"`
}

func (h *OrderHandler) GetTransitions(c *gin.Context) {
	current, next, err := h.orders.NextStates(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	if next == nil {
		next = []model.Status{}
	}
	response.Success(c, TransitionsResponse{Status: current, Next: next, Terminal: statemachine.IsTerminal(current)})
}

type SyncInput struct {
	OrderIDs []string `json:"orderIds" binding:"required,min=1"`
}

// SyncOrders 手动触发对账；限流时返回 429，已处理订单的结果照常返回
func (h *OrderHandler) SyncOrders(c *gin.Context) {
	var input SyncInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if h.opts.MaxBatchSize > 0 && len(input.OrderIDs) > h.opts.MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "too many order ids"})
		return
	}

	res, err := h.syncer.Sync(c.Request.Context(), input.OrderIDs)
	if err != nil {
		h.log.Error("sync orders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "sync failed"})
		return
	}

	if res.RateLimited {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"ok":      false,
			"error":   "rate limited",
			"errors":  res.Errors,
			"skipped": res.Skipped,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"errors":  res.Errors,
		"updated": res.Updated,
	})
}

func (h *OrderHandler) writeOrderError(c *gin.Context, err error) {
	switch {
	case repository.IsNotFound(err):
		response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidStatus, err.Error())
	case errors.Is(err, service.ErrTransitionRejected):
		response.Error(c, http.StatusBadRequest, response.ErrTransitionRejected, err.Error())
	default:
		h.log.Error("order request failed", zap.String("trace_id", middleware.TraceID(c)), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "internal error")
	}
}
