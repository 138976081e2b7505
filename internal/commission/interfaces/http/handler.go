package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/commission/internal/commission/application"
	"github.com/wyfcoding/commission/internal/commission/domain"
	"github.com/wyfcoding/pkg/idgen"
)

// CommissionHandler HTTP 处理器。
// 启动类接口只做“接收并入队”：命令发布到 kafka 后立即返回 202，
// 结果通过汇总事件与查询接口异步暴露。
type CommissionHandler struct {
	query     *application.QueryService
	publisher domain.EventPublisher
}

// NewCommissionHandler 创建 HTTP 处理器实例。
func NewCommissionHandler(query *application.QueryService, publisher domain.EventPublisher) *CommissionHandler {
	return &CommissionHandler{query: query, publisher: publisher}
}

// RegisterRoutes 注册路由。
func (h *CommissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/v1/commission")
	{
		api.POST("/overnight-swap", h.StartOvernightSwap)
		api.POST("/daily-pnl", h.StartDailyPnl)
		api.GET("/operations/:name/:id", h.GetOperation)
		api.GET("/overnight-swap/:id/state", h.GetSwapBatchState)
		api.GET("/overnight-swap/:id/charges", h.ListSwapCharges)
	}
}

// StartOvernightSwapRequest 隔夜利息批处理启动请求。
type StartOvernightSwapRequest struct {
	OperationID string                        `json:"operation_id"`
	Positions   []domain.SwapPositionSnapshot `json:"positions" binding:"required"`
}

// StartOvernightSwap 启动隔夜利息批处理。
func (h *CommissionHandler) StartOvernightSwap(c *gin.Context) {
	var req StartOvernightSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	operationID := req.OperationID
	if operationID == "" {
		operationID = fmt.Sprintf("swap_%d", idgen.GenID())
	}
	cmd := domain.StartSwapProcessCommand{
		OperationID: operationID,
		Positions:   req.Positions,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.publisher.Publish(c.Request.Context(), domain.TopicSwapProcessStart, operationID, cmd); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"operation_id": operationID, "status": "accepted"})
}

// StartDailyPnlRequest 每日盈亏批处理启动请求。
type StartDailyPnlRequest struct {
	OperationID string                      `json:"operation_id"`
	Accounts    []domain.PnlAccountSnapshot `json:"accounts" binding:"required"`
}

// StartDailyPnl 启动每日盈亏批处理。
func (h *CommissionHandler) StartDailyPnl(c *gin.Context) {
	var req StartDailyPnlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	operationID := req.OperationID
	if operationID == "" {
		operationID = fmt.Sprintf("pnl_%d", idgen.GenID())
	}
	cmd := domain.StartPnlProcessCommand{
		OperationID: operationID,
		Accounts:    req.Accounts,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.publisher.Publish(c.Request.Context(), domain.TopicPnlProcessStart, operationID, cmd); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"operation_id": operationID, "status": "accepted"})
}

// GetOperation 查询单个账本行。
func (h *CommissionHandler) GetOperation(c *gin.Context) {
	dto, err := h.query.GetOperation(c.Request.Context(), c.Param("name"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if dto == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
		return
	}
	c.JSON(http.StatusOK, dto)
}

// GetSwapBatchState 查询隔夜利息批次进度。
func (h *CommissionHandler) GetSwapBatchState(c *gin.Context) {
	state, err := h.query.GetSwapBatchState(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"operation_id":  c.Param("id"),
		"total":         state.Total,
		"failed":        state.Failed,
		"not_processed": state.NotProcessed,
		"complete":      state.Complete(),
	})
}

// ListSwapCharges 查询隔夜利息批次的逐仓扣费明细。
func (h *CommissionHandler) ListSwapCharges(c *gin.Context) {
	charges, err := h.query.ListSwapCharges(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, charges)
}
