package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aurum/internal/account"
	"aurum/internal/backtest"
	"aurum/internal/config"
	"aurum/internal/market"
	"aurum/internal/report"
	"aurum/internal/store"
	"aurum/internal/store/cyclelog"
)

// Router 暴露账户管理与周期日志查询接口。
type Router struct {
	Accounts store.AccountStore
	Cycles   *cyclelog.Store
	Source   market.Source
	Register config.RegisterConfig
	Backtest *backtest.Service

	candleLimit int
	nowFn       func() time.Time
	renderChart func(report.ChartInput) (report.ImageResult, error)
}

func NewRouter(accounts store.AccountStore, cycles *cyclelog.Store, source market.Source, reg config.RegisterConfig, candleLimit int) *Router {
	if candleLimit <= 0 {
		candleLimit = 120
	}
	return &Router{
		Accounts:    accounts,
		Cycles:      cycles,
		Source:      source,
		Register:    reg,
		candleLimit: candleLimit,
		nowFn:       time.Now,
		renderChart: report.RenderDailyChart,
	}
}

// Mount 将 /api 路由挂载到给定分组下。
func (r *Router) Mount(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/accounts/register", r.handleRegister)
	group.GET("/accounts", r.handleListAccounts)
	group.GET("/accounts/:auth", r.handleGetAccount)
	group.DELETE("/accounts/:auth", r.handleDeleteAccount)
	group.GET("/accounts/:auth/trades", r.handleTrades)
	group.GET("/cycles", r.handleCycles)
	group.GET("/cycles/trace/:trace_id", r.handleCyclesByTrace)
	if r.Source != nil {
		group.GET("/chart/:code", r.handleChart)
	}
	if r.Backtest != nil {
		group.POST("/backtest", r.handleBacktest)
	}
}

func (r *Router) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TotalCost.Sign() < 0 || req.TotalShares < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_cost and total_shares must be >= 0"})
		return
	}

	window, err := r.Register.Window()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.WindowStart != "" || req.WindowEnd != "" {
		window, err = overrideWindow(window, req.WindowStart, req.WindowEnd)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	expireDays := req.ExpireDays
	if expireDays <= 0 {
		expireDays = r.Register.ExpireDays
	}
	switched := account.SwitchOn
	if req.Enabled != nil && !*req.Enabled {
		switched = account.SwitchOff
	}

	a, err := r.Accounts.RegisterOrSync(c.Request.Context(), req.Auth, req.TotalCost, req.TotalShares, store.RegisterOptions{
		ExpireTime: r.nowFn().AddDate(0, 0, expireDays),
		Window:     window,
		Switched:   switched,
		Creator:    "api",
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, accountView(a))
}

func overrideWindow(base account.TradingWindow, start, end string) (account.TradingWindow, error) {
	w := base
	if start != "" {
		v, err := account.ParseTimeOfDay(start)
		if err != nil {
			return w, err
		}
		w.Start = v
	}
	if end != "" {
		v, err := account.ParseTimeOfDay(end)
		if err != nil {
			return w, err
		}
		w.End = v
	}
	return w, w.Validate()
}

func (r *Router) handleListAccounts(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"
	accounts, err := r.Accounts.List(c.Request.Context(), includeDeleted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}
	c.JSON(http.StatusOK, gin.H{"total": len(views), "items": views})
}

func (r *Router) handleGetAccount(c *gin.Context) {
	a, err := r.Accounts.Get(c.Request.Context(), c.Param("auth"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, accountView(a))
}

func (r *Router) handleDeleteAccount(c *gin.Context) {
	err := r.Accounts.SoftDelete(c.Request.Context(), c.Param("auth"), "api")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (r *Router) handleTrades(c *gin.Context) {
	a, err := r.Accounts.Get(c.Request.Context(), c.Param("auth"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	trades := tradeViews(a)
	c.JSON(http.StatusOK, gin.H{"total": len(trades), "items": trades})
}

func (r *Router) handleCycles(c *gin.Context) {
	if r.Cycles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle log not enabled"})
		return
	}
	q := cyclelog.Query{
		Auth:     c.Query("auth"),
		Decision: c.Query("decision"),
		Limit:    parseQueryInt(c, "limit", 100),
		Offset:   parseQueryInt(c, "offset", 0),
	}
	list, err := r.Cycles.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := r.Cycles.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "items": list})
}

func (r *Router) handleCyclesByTrace(c *gin.Context) {
	if r.Cycles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle log not enabled"})
		return
	}
	list, err := r.Cycles.ListByTraceID(c.Request.Context(), c.Param("trace_id"), parseQueryInt(c, "limit", 200))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(list), "items": list})
}

func (r *Router) handleChart(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	candles, err := r.Source.DailyCandles(c.Request.Context(), code, r.candleLimit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	img, err := r.renderChart(report.ChartInput{
		Context:   c.Request.Context(),
		StockCode: code,
		Candles:   candles,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", img.Bytes)
}

func (r *Router) handleBacktest(c *gin.Context) {
	var req backtest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.StockCode) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock_code is required"})
		return
	}
	res, err := r.Backtest.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
