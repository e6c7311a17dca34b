package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/lt-indexer/internal/api/shared/executor"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// GetInstruments retrieves every leveraged token
	// GET /api/v1/instruments
	GetInstruments(c *gin.Context)

	// GetInstrument retrieves a leveraged token by address
	// GET /api/v1/instruments/:address
	GetInstrument(c *gin.Context)

	// ListUsers retrieves users ordered by address
	// GET /api/v1/users?cursor=<address>&limit=<limit>
	ListUsers(c *gin.Context)

	// GetUser retrieves the aggregates of a user
	// GET /api/v1/users/:address
	GetUser(c *gin.Context)

	// GetUserTrades retrieves the trades of a user, newest first by default
	// GET /api/v1/users/:address/trades?instrument=<address>&asset=<asset>&after=<cursor>&before=<cursor>&limit=<limit>&order=<order>
	GetUserTrades(c *gin.Context)

	// GetUserPnl replays the history of a user
	// GET /api/v1/users/:address/pnl
	GetUserPnl(c *gin.Context)

	// GetPortfolio values the positions of a user
	// GET /api/v1/users/:address/portfolio
	GetPortfolio(c *gin.Context)

	// GetUserReferrals retrieves the referral summary of a user
	// GET /api/v1/users/:address/referrals
	GetUserReferrals(c *gin.Context)

	// GetReferralCode tells whether a referral code is registered
	// GET /api/v1/referrals/codes/:code
	GetReferralCode(c *gin.Context)

	// ListReferrers retrieves users that registered a referral code
	// GET /api/v1/referrers?cursor=<address>&limit=<limit>
	ListReferrers(c *gin.Context)

	// GetLatestTrades retrieves the most recent trades
	// GET /api/v1/trades/latest?limit=<limit>
	GetLatestTrades(c *gin.Context)

	// GetTrade retrieves a trade by id
	// GET /api/v1/trades/:id
	GetTrade(c *gin.Context)

	// GetStats aggregates protocol activity
	// GET /api/v1/stats
	GetStats(c *gin.Context)

	// GetVolumeChart returns the cumulative notional volume per day
	// GET /api/v1/stats/volume-chart
	GetVolumeChart(c *gin.Context)

	// GetGlobalStorage retrieves the protocol parameters
	// GET /api/v1/global-storage
	GetGlobalStorage(c *gin.Context)

	// ReconcileUser compares the positions of a user with a replay of their history (requires authentication)
	// POST /api/v1/admin/users/:address/reconcile
	ReconcileUser(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{
		executor: exec,
	}
}

func (h *handler) GetInstruments(c *gin.Context) {
	instruments, err := h.executor.GetInstruments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, instruments)
}

func (h *handler) GetInstrument(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		respondBadRequest(c, "Invalid leveraged token address")
		return
	}

	instrument, err := h.executor.GetInstrument(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	if instrument == nil {
		respondNotFound(c, "Leveraged token not found")
		return
	}

	c.JSON(http.StatusOK, instrument)
}

func (h *handler) ListUsers(c *gin.Context) {
	queryParams, err := ParseListUsersQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.GetUsers(c.Request.Context(), queryParams.Cursor, queryParams.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetUser(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		respondBadRequest(c, "Invalid user address")
		return
	}

	user, err := h.executor.GetUser(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	if user == nil {
		respondNotFound(c, "User not found")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *handler) GetUserTrades(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		respondBadRequest(c, "Invalid user address")
		return
	}

	queryParams, err := ParseUserTradesQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.GetUserTrades(c.Request.Context(), address, executor.TradeQuery{
		LeveragedToken: queryParams.Instrument,
		Asset:          queryParams.Asset,
		After:          queryParams.After,
		Before:         queryParams.Before,
		Limit:          queryParams.Limit,
		Order:          queryParams.Order,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetUserPnl(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		respondBadRequest(c, "Invalid user address")
		return
	}

	response, err := h.executor.GetUserPnl(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetPortfolio(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		respondBadRequest(c, "Invalid user address")
		return
	}

	response, err := h.executor.GetPortfolio(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetUserReferrals(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		respondBadRequest(c, "Invalid user address")
		return
	}

	response, err := h.executor.GetUserReferrals(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetReferralCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		respondBadRequest(c, "Referral code is required")
		return
	}

	response, err := h.executor.GetReferralCode(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) ListReferrers(c *gin.Context) {
	queryParams, err := ParseListUsersQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.GetReferrers(c.Request.Context(), queryParams.Cursor, queryParams.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetLatestTrades(c *gin.Context) {
	queryParams, err := ParseLatestTradesQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	trades, err := h.executor.GetLatestTrades(c.Request.Context(), queryParams.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}

func (h *handler) GetTrade(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respondBadRequest(c, "Trade id is required")
		return
	}

	trade, err := h.executor.GetTrade(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if trade == nil {
		respondNotFound(c, "Trade not found")
		return
	}

	c.JSON(http.StatusOK, trade)
}

func (h *handler) GetStats(c *gin.Context) {
	stats, err := h.executor.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *handler) GetVolumeChart(c *gin.Context) {
	points, err := h.executor.GetVolumeChart(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, points)
}

func (h *handler) GetGlobalStorage(c *gin.Context) {
	global, err := h.executor.GetGlobalStorage(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, global)
}

func (h *handler) ReconcileUser(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		respondBadRequest(c, "Invalid user address")
		return
	}

	response, err := h.executor.ReconcileUser(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "lt-indexer-api",
	})
}
