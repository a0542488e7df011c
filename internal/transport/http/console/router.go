package consolehttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tradecore/internal/controls"
	"tradecore/internal/logger"
	"tradecore/internal/pipeline"
	"tradecore/internal/reconcile"
	"tradecore/internal/store"
	"tradecore/internal/submit"
	"tradecore/internal/types"

	"github.com/gin-gonic/gin"
)

// Router 汇聚操作台接口的全部依赖。
type Router struct {
	Orchestrator *pipeline.Orchestrator
	Submitter    *submit.Submitter
	Poller       *reconcile.Poller
	Hub          *reconcile.Hub
	Controls     *controls.Store
	Journal      *store.Store
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/run", r.handleRun)
	group.GET("/picks", r.handlePicks)
	group.GET("/plans", r.handlePlans)
	group.GET("/controls", r.handleControlsList)
	group.PUT("/controls/:symbol", r.handleControlSet)
	group.POST("/submit", r.handleSubmit)
	group.GET("/console", r.handleConsole)
	group.DELETE("/orders/:symbol/:order_id", r.handleCancelOrder)
	group.POST("/orders/cancel-all", r.handleCancelAll)
	group.POST("/flatten", r.handleFlatten)
	group.GET("/runs", r.handleRuns)
	group.GET("/submissions", r.handleSubmissions)
}

// handleRun 同步触发一轮流水线。已有一轮在跑时返回 409。
func (r *Router) handleRun(c *gin.Context) {
	result, err := r.Orchestrator.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if r.Journal != nil {
		r.Journal.SaveRun(result)
	}
	logger.Infof("[api] run 触发 ip=%s run_id=%s state=%s picks=%d",
		c.ClientIP(), result.RunID, result.State, len(result.Picks))
	c.JSON(http.StatusOK, gin.H{"run": result})
}

func (r *Router) handlePicks(c *gin.Context) {
	last := r.Orchestrator.LastResult()
	if last.RunID == "" {
		c.JSON(http.StatusOK, gin.H{"picks": []types.FinalPick{}, "state": pipeline.StateIdle})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":  last.RunID,
		"state":   last.State,
		"posture": last.Posture,
		"picks":   last.Picks,
	})
}

// handlePlans 现算每个勾选 symbol 的下单计划，从不回缓存。
func (r *Router) handlePlans(c *gin.Context) {
	last := r.Orchestrator.LastResult()
	plans, err := r.Submitter.Preview(c.Request.Context(), submit.Request{
		Posture:  last.Posture,
		Picks:    last.Picks,
		Controls: r.Controls.Selected(),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (r *Router) handleControlsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"controls": r.Controls.All()})
}

func (r *Router) handleControlSet(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	var control types.CoinControl
	if err := c.ShouldBindJSON(&control); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	control.Symbol = symbol
	r.Controls.Set(control)
	logger.Infof("[api] control 更新 ip=%s symbol=%s include=%v tp=%d amount=%.2f",
		c.ClientIP(), symbol, control.Include, control.TPLevel, control.AmountUSD)
	c.JSON(http.StatusOK, gin.H{"control": control.Normalized()})
}

// handleSubmit 按当前选择状态提交批次。校验/复核失败返回 422，
// 报告原样带回，便于操作台展示中止原因。
func (r *Router) handleSubmit(c *gin.Context) {
	last := r.Orchestrator.LastResult()
	report, err := r.Submitter.Submit(c.Request.Context(), submit.Request{
		Posture:  last.Posture,
		Picks:    last.Picks,
		Controls: r.Controls.Selected(),
	})
	if err != nil {
		logger.Warnf("[api] submit 中止 ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "report": report})
		return
	}
	if r.Journal != nil {
		r.Journal.SaveSubmission(report)
	}
	// 提交后立即做一次对账，让快照尽快反映新挂单
	r.Poller.PollNow(c.Request.Context())
	logger.Infof("[api] submit 完成 ip=%s intents=%d success=%v", c.ClientIP(), len(report.Intents), report.Result.Success)
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (r *Router) handleConsole(c *gin.Context) {
	snap := r.Hub.Current()
	banned, remaining := r.Poller.BanStatus()
	c.JSON(http.StatusOK, gin.H{
		"console":       snap,
		"banned":        banned,
		"ban_remaining": remaining.String(),
	})
}

func (r *Router) handleCancelOrder(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	orderID, _ := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if symbol == "" || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 与 order_id 必填"})
		return
	}
	if err := r.Poller.CancelOne(c.Request.Context(), symbol, orderID); err != nil {
		logger.Errorf("[api] cancel 失败 ip=%s symbol=%s order=%d err=%v", c.ClientIP(), symbol, orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] cancel 完成 ip=%s symbol=%s order=%d", c.ClientIP(), symbol, orderID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleCancelAll(c *gin.Context) {
	outcomes := r.Poller.CancelAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

type flattenRequest struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
}

// handleFlatten 平仓。给了 symbol 就平单个，否则平掉全部持仓。
func (r *Router) handleFlatten(c *gin.Context) {
	var req flattenRequest
	_ = c.ShouldBindJSON(&req)
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol != "" {
		if err := r.Poller.FlattenOne(c.Request.Context(), symbol, req.Side); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		logger.Infof("[api] flatten 完成 ip=%s symbol=%s", c.ClientIP(), symbol)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	outcomes := r.Poller.FlattenAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

func (r *Router) handleRuns(c *gin.Context) {
	if r.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "运行日志库未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := r.Journal.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (r *Router) handleSubmissions(c *gin.Context) {
	if r.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "运行日志库未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := r.Journal.RecentSubmissions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": records})
}
