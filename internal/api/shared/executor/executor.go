package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feral-file/lt-indexer/internal/api/shared/constants"
	"github.com/feral-file/lt-indexer/internal/api/shared/dto"
	apierrors "github.com/feral-file/lt-indexer/internal/api/shared/errors"
	"github.com/feral-file/lt-indexer/internal/api/shared/types"
	"github.com/feral-file/lt-indexer/internal/cache"
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/pnl"
	"github.com/feral-file/lt-indexer/internal/reconcile"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

// TradeQuery holds the filters and pagination of a user trade listing
type TradeQuery struct {
	LeveragedToken string
	Asset          string
	After          string
	Before         string
	Limit          int
	Order          types.Order
}

// Executor is the interface for the API executor
//
//go:generate mockgen -source=executor.go -destination=../../../mocks/mock_api_executor.go -package=mocks -mock_names=Executor=MockAPIExecutor
type Executor interface {
	// GetInstruments retrieves every leveraged token
	GetInstruments(ctx context.Context) ([]dto.InstrumentResponse, error)
	// GetInstrument retrieves a leveraged token, nil when unknown
	GetInstrument(ctx context.Context, address string) (*dto.InstrumentResponse, error)

	// GetUsers retrieves users ordered by address, strictly after cursor
	GetUsers(ctx context.Context, cursor string, limit int) (*dto.UserListResponse, error)
	// GetUser retrieves a user, nil when unknown
	GetUser(ctx context.Context, address string) (*dto.UserResponse, error)
	// GetUserTrades retrieves a cursor-paginated page of the trades of a user
	GetUserTrades(ctx context.Context, address string, query TradeQuery) (*dto.TradePageResponse, error)
	// GetUserPnl replays the history of a user and values the open positions
	GetUserPnl(ctx context.Context, address string) (*dto.PnlResponse, error)
	// GetPortfolio values the stored positions of a user
	GetPortfolio(ctx context.Context, address string) (*dto.PortfolioResponse, error)
	// GetUserReferrals retrieves the referral summary of a user
	GetUserReferrals(ctx context.Context, address string) (*dto.ReferralsResponse, error)

	// GetReferralCode tells whether a referral code is registered
	GetReferralCode(ctx context.Context, code string) (*dto.ReferralCodeResponse, error)
	// GetReferrers retrieves users that registered a referral code
	GetReferrers(ctx context.Context, cursor string, limit int) (*dto.UserListResponse, error)

	// GetLatestTrades retrieves the most recent trades across all users
	GetLatestTrades(ctx context.Context, limit int) ([]dto.TradeResponse, error)
	// GetTrade retrieves a trade, nil when unknown
	GetTrade(ctx context.Context, id string) (*dto.TradeResponse, error)

	// GetStats aggregates protocol activity
	GetStats(ctx context.Context) (*dto.StatsResponse, error)
	// GetVolumeChart returns the cumulative notional volume per UTC day
	GetVolumeChart(ctx context.Context) ([]dto.VolumePoint, error)
	// GetGlobalStorage retrieves the protocol parameters
	GetGlobalStorage(ctx context.Context) (*dto.GlobalStorageResponse, error)

	// ReconcileUser compares the stored positions of a user with a replay of their history
	ReconcileUser(ctx context.Context, address string) (*dto.ReconcileResponse, error)
}

// Config holds the executor configuration
type Config struct {
	// ReconcileTolerance is the accepted drift in base asset units (6 decimals)
	ReconcileTolerance int64
}

type executor struct {
	store     store.Store
	rateCache cache.RateCache
	tolerance *big.Int
}

// NewExecutor creates an executor. rateCache may be nil, in which case exchange
// rates are read from the database only.
func NewExecutor(st store.Store, rateCache cache.RateCache, cfg Config) Executor {
	return &executor{
		store:     st,
		rateCache: rateCache,
		tolerance: big.NewInt(cfg.ReconcileTolerance),
	}
}

func (e *executor) GetInstruments(ctx context.Context) ([]dto.InstrumentResponse, error) {
	tokens, err := e.store.ListLeveragedTokens(ctx)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get leveraged tokens")
	}

	items := make([]dto.InstrumentResponse, len(tokens))
	for i := range tokens {
		items[i] = *dto.MapInstrumentToDTO(&tokens[i])
	}
	return items, nil
}

func (e *executor) GetInstrument(ctx context.Context, address string) (*dto.InstrumentResponse, error) {
	token, err := e.store.GetLeveragedToken(ctx, address)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get leveraged token")
	}
	if token == nil {
		return nil, nil
	}
	return dto.MapInstrumentToDTO(token), nil
}

func (e *executor) GetUsers(ctx context.Context, cursor string, limit int) (*dto.UserListResponse, error) {
	return e.listUsers(ctx, store.UserFilter{AfterAddress: cursor}, limit)
}

func (e *executor) GetReferrers(ctx context.Context, cursor string, limit int) (*dto.UserListResponse, error) {
	return e.listUsers(ctx, store.UserFilter{AfterAddress: cursor, ReferrersOnly: true}, limit)
}

func (e *executor) listUsers(ctx context.Context, filter store.UserFilter, limit int) (*dto.UserListResponse, error) {
	if limit <= 0 {
		limit = constants.DEFAULT_USERS_LIMIT
	}
	// One extra row tells whether another page exists
	filter.Limit = limit + 1

	users, err := e.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get users")
	}

	var next *string
	if len(users) > limit {
		users = users[:limit]
		last := users[limit-1].Address
		next = &last
	}

	items := make([]dto.UserResponse, len(users))
	for i := range users {
		items[i] = *dto.MapUserToDTO(&users[i])
	}
	return &dto.UserListResponse{Users: items, NextCursor: next}, nil
}

func (e *executor) GetUser(ctx context.Context, address string) (*dto.UserResponse, error) {
	user, err := e.store.GetUser(ctx, address)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get user")
	}
	if user == nil {
		return nil, nil
	}
	return dto.MapUserToDTO(user), nil
}

func (e *executor) GetUserTrades(ctx context.Context, address string, query TradeQuery) (*dto.TradePageResponse, error) {
	if query.After != "" && query.Before != "" {
		return nil, apierrors.NewValidationError("cannot specify both after and before")
	}
	if query.Limit <= 0 {
		query.Limit = constants.DEFAULT_TRADES_LIMIT
	}
	if !query.Order.Valid() {
		query.Order = constants.DEFAULT_TRADES_ORDER
	}

	filter := store.TradeFilter{
		User:           address,
		LeveragedToken: query.LeveragedToken,
		TargetAsset:    query.Asset,
		Desc:           query.Order.Desc(),
		Limit:          query.Limit + 1,
	}
	switch {
	case query.After != "":
		cursor, err := dto.DecodeTradeCursor(query.After)
		if err != nil {
			return nil, apierrors.NewBadRequestError("Invalid after cursor", err.Error())
		}
		filter.Cursor = cursor
	case query.Before != "":
		cursor, err := dto.DecodeTradeCursor(query.Before)
		if err != nil {
			return nil, apierrors.NewBadRequestError("Invalid before cursor", err.Error())
		}
		filter.Cursor = cursor
		filter.Backward = true
	}

	trades, err := e.store.ListTrades(ctx, filter)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get trades")
	}

	hasMore := len(trades) > query.Limit
	if hasMore {
		if filter.Backward {
			// Backward pages come back in display order, the extra row is the first one
			trades = trades[1:]
		} else {
			trades = trades[:query.Limit]
		}
	}

	return &dto.TradePageResponse{
		Items:    dto.MapTradesToDTO(trades),
		PageInfo: pageInfo(trades, hasMore, query.After != "", filter.Backward),
	}, nil
}

func pageInfo(trades []schema.Trade, hasMore, after, before bool) dto.PageInfo {
	if len(trades) == 0 {
		return dto.PageInfo{}
	}

	first, last := &trades[0], &trades[len(trades)-1]
	start := dto.EncodeTradeCursor(first.Timestamp, first.ID)
	end := dto.EncodeTradeCursor(last.Timestamp, last.ID)

	info := dto.PageInfo{StartCursor: &start, EndCursor: &end}
	if before {
		info.HasPreviousPage = hasMore
		info.HasNextPage = true
	} else {
		info.HasPreviousPage = after
		info.HasNextPage = hasMore
	}
	return info
}

func (e *executor) GetUserPnl(ctx context.Context, address string) (*dto.PnlResponse, error) {
	var (
		history  *reconcile.History
		balances []schema.Balance
		tokens   []schema.LeveragedToken
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = reconcile.LoadHistory(gctx, e.store, address)
		return err
	})
	g.Go(func() error {
		var err error
		balances, err = e.store.ListBalancesByUser(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		tokens, err = e.store.ListLeveragedTokens(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get user history")
	}
	rates, err := e.exchangeRates(ctx, tokens)
	if err != nil {
		return nil, e.internalError(ctx, err, "Failed to get exchange rates")
	}

	holdings := make(map[string]*big.Int, len(balances))
	for i := range balances {
		total, err := fixedpoint.ParseInt(balances[i].TotalBalance)
		if err != nil {
			return nil, e.internalError(ctx, err, "Invalid stored balance")
		}
		holdings[balances[i].LeveragedToken] = total
	}

	response := &dto.PnlResponse{LeveragedTokens: make(map[string]dto.PositionPnl)}
	totalRealized := new(big.Int)
	totalUnrealized := new(big.Int)
	for _, token := range history.LeveragedTokens() {
		rate, ok := rates[token]
		if !ok {
			logger.WarnCtx(ctx, "Skipping position of unknown leveraged token",
				zap.String("user", address),
				zap.String("leveraged_token", token))
			continue
		}

		result, err := history.Replay(token)
		if err != nil {
			return nil, e.internalError(ctx, err, "Failed to replay position")
		}

		holding := holdings[token]
		if holding == nil {
			holding = new(big.Int)
		}
		unrealized := pnl.Unrealized(holding, rate, result.Cost)

		response.LeveragedTokens[token] = dto.PositionPnl{
			Realized:          fixedpoint.FormatUnits(result.Realized, fixedpoint.BaseDecimals),
			Unrealized:        fixedpoint.FormatUnits(unrealized, fixedpoint.Decimals),
			UnrealizedPercent: fixedpoint.ToFloat64(pnl.UnrealizedPercent(unrealized, result.Cost), fixedpoint.Decimals),
		}
		totalRealized.Add(totalRealized, result.Realized)
		totalUnrealized.Add(totalUnrealized, unrealized)
	}

	response.TotalRealized = fixedpoint.FormatUnits(totalRealized, fixedpoint.BaseDecimals)
	response.TotalUnrealized = fixedpoint.FormatUnits(totalUnrealized, fixedpoint.Decimals)
	return response, nil
}

func (e *executor) GetPortfolio(ctx context.Context, address string) (*dto.PortfolioResponse, error) {
	var (
		balances []schema.Balance
		tokens   []schema.LeveragedToken
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balances, err = e.store.ListBalancesByUser(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		tokens, err = e.store.ListLeveragedTokens(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get portfolio")
	}
	rates, err := e.exchangeRates(ctx, tokens)
	if err != nil {
		return nil, e.internalError(ctx, err, "Failed to get exchange rates")
	}

	byAddress := make(map[string]*schema.LeveragedToken, len(tokens))
	for i := range tokens {
		byAddress[tokens[i].Address] = &tokens[i]
	}

	response := &dto.PortfolioResponse{
		LeveragedTokens: make([]dto.PortfolioPosition, 0, len(balances)),
		PnlChart:        []dto.PnlPoint{},
	}
	totalRealized := new(big.Int)
	totalUnrealized := new(big.Int)
	for i := range balances {
		b := &balances[i]
		token, ok := byAddress[b.LeveragedToken]
		if !ok {
			continue
		}

		total, err := fixedpoint.ParseInt(b.TotalBalance)
		if err != nil {
			return nil, e.internalError(ctx, err, "Invalid stored balance")
		}
		cost, err := fixedpoint.ParseInt(b.PurchaseCost)
		if err != nil {
			return nil, e.internalError(ctx, err, "Invalid stored purchase cost")
		}
		realized, err := fixedpoint.ParseInt(b.RealizedProfit)
		if err != nil {
			return nil, e.internalError(ctx, err, "Invalid stored realized profit")
		}

		unrealized := pnl.Unrealized(total, rates[token.Address], cost)
		instrument := dto.MapInstrumentToDTO(token)
		instrument.ExchangeRate = fixedpoint.FormatUnits(rates[token.Address], fixedpoint.Decimals)

		response.LeveragedTokens = append(response.LeveragedTokens, dto.PortfolioPosition{
			InstrumentResponse: *instrument,
			UserBalance:        fixedpoint.FormatUnits(total, fixedpoint.Decimals),
			PurchaseCost:       fixedpoint.FormatUnits(cost, fixedpoint.BaseDecimals),
			RealizedProfit:     fixedpoint.FormatUnits(realized, fixedpoint.BaseDecimals),
			UnrealizedProfit:   fixedpoint.FormatUnits(unrealized, fixedpoint.Decimals),
			UnrealizedPercent:  fixedpoint.ToFloat64(pnl.UnrealizedPercent(unrealized, cost), fixedpoint.Decimals),
		})
		totalRealized.Add(totalRealized, realized)
		totalUnrealized.Add(totalUnrealized, unrealized)
	}

	response.RealizedProfit = fixedpoint.FormatUnits(totalRealized, fixedpoint.BaseDecimals)
	response.UnrealizedProfit = fixedpoint.FormatUnits(totalUnrealized, fixedpoint.Decimals)
	return response, nil
}

func (e *executor) GetUserReferrals(ctx context.Context, address string) (*dto.ReferralsResponse, error) {
	user, err := e.store.GetUser(ctx, address)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get user referrals")
	}
	return dto.MapReferralsToDTO(address, user), nil
}

func (e *executor) GetReferralCode(ctx context.Context, code string) (*dto.ReferralCodeResponse, error) {
	user, err := e.store.GetUserByReferralCode(ctx, code)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get referral code")
	}

	response := &dto.ReferralCodeResponse{Code: code}
	if user != nil {
		response.Valid = true
		response.Referrer = &user.Address
	}
	return response, nil
}

func (e *executor) GetLatestTrades(ctx context.Context, limit int) ([]dto.TradeResponse, error) {
	if limit <= 0 {
		limit = constants.DEFAULT_TRADES_LIMIT
	}

	trades, err := e.store.ListTrades(ctx, store.TradeFilter{Desc: true, Limit: limit})
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get latest trades")
	}
	return dto.MapTradesToDTO(trades), nil
}

func (e *executor) GetTrade(ctx context.Context, id string) (*dto.TradeResponse, error) {
	trade, err := e.store.GetTrade(ctx, id)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get trade")
	}
	if trade == nil {
		return nil, nil
	}
	return dto.MapTradeToDTO(trade), nil
}

// GetStats computes value locked and open interest from the stored supply
// and exchange rate of every leveraged token.
func (e *executor) GetStats(ctx context.Context) (*dto.StatsResponse, error) {
	var (
		stats  *store.ProtocolStats
		tokens []schema.LeveragedToken
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = e.store.GetProtocolStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tokens, err = e.store.ListLeveragedTokens(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get stats")
	}
	rates, err := e.exchangeRates(ctx, tokens)
	if err != nil {
		return nil, e.internalError(ctx, err, "Failed to get exchange rates")
	}

	tvl := new(big.Int)
	openInterest := new(big.Int)
	for i := range tokens {
		supply, err := fixedpoint.ParseInt(tokens[i].TotalSupply)
		if err != nil {
			return nil, e.internalError(ctx, err, "Invalid stored supply")
		}
		leverage, err := fixedpoint.ParseInt(tokens[i].TargetLeverage)
		if err != nil {
			return nil, e.internalError(ctx, err, "Invalid stored leverage")
		}
		// supply (18) * rate (18) / 10^18 = value (18), converted to base decimals
		value := fixedpoint.ConvertDecimals(fixedpoint.Mul(supply, rates[tokens[i].Address]), fixedpoint.Decimals, fixedpoint.BaseDecimals)
		tvl.Add(tvl, value)
		openInterest.Add(openInterest, fixedpoint.Mul(value, leverage))
	}

	margin, err := fixedpoint.ParseInt(stats.MarginVolume)
	if err != nil {
		return nil, e.internalError(ctx, err, "Invalid margin volume")
	}
	notional, err := fixedpoint.ParseInt(stats.NotionalVolume)
	if err != nil {
		return nil, e.internalError(ctx, err, "Invalid notional volume")
	}
	var averageLeverage float64
	if margin.Sign() > 0 {
		ratio, _ := fixedpoint.Div(notional, margin)
		averageLeverage = fixedpoint.ToFloat64(ratio, fixedpoint.Decimals)
	}

	return &dto.StatsResponse{
		MarginVolume:     fixedpoint.FormatUnits(margin, fixedpoint.BaseDecimals),
		NotionalVolume:   fixedpoint.FormatUnits(notional, fixedpoint.BaseDecimals),
		AverageLeverage:  averageLeverage,
		SupportedAssets:  stats.SupportedAssets,
		LeveragedTokens:  stats.LeveragedTokens,
		UniqueUsers:      stats.UniqueUsers,
		TotalValueLocked: fixedpoint.FormatUnits(tvl, fixedpoint.BaseDecimals),
		OpenInterest:     fixedpoint.FormatUnits(openInterest, fixedpoint.BaseDecimals),
		TotalTrades:      stats.TotalTrades,
	}, nil
}

func (e *executor) GetVolumeChart(ctx context.Context) ([]dto.VolumePoint, error) {
	days, err := e.store.GetDailyVolumes(ctx)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get volume chart")
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Day.Before(days[j].Day) })

	cumulative := new(big.Int)
	points := make([]dto.VolumePoint, len(days))
	for i, day := range days {
		volume, err := fixedpoint.ParseInt(day.NotionalVolume)
		if err != nil {
			return nil, e.internalError(ctx, err, "Invalid daily volume")
		}
		cumulative.Add(cumulative, volume)
		points[i] = dto.VolumePoint{
			Timestamp:        day.Day.UTC().Truncate(24 * time.Hour).UnixMilli(),
			CumulativeVolume: fixedpoint.FormatUnits(cumulative, fixedpoint.BaseDecimals),
		}
	}
	return points, nil
}

func (e *executor) GetGlobalStorage(ctx context.Context) (*dto.GlobalStorageResponse, error) {
	global, err := e.store.GetGlobalStorage(ctx)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to get global storage")
	}
	if global == nil {
		global = schema.NewGlobalStorage(0)
	}
	return dto.MapGlobalStorageToDTO(global), nil
}

func (e *executor) ReconcileUser(ctx context.Context, address string) (*dto.ReconcileResponse, error) {
	drifts, err := reconcile.CheckUser(ctx, e.store, address)
	if err != nil {
		return nil, e.databaseError(ctx, err, "Failed to reconcile user")
	}

	for i := range drifts {
		if drifts[i].Exceeds(e.tolerance) {
			logger.WarnCtx(ctx, "Position drifted from its replayed history",
				zap.String("user", address),
				zap.String("leveraged_token", drifts[i].LeveragedToken),
				zap.String("cost_drift", drifts[i].CostDrift().String()),
				zap.String("realized_drift", drifts[i].RealizedDrift().String()))
		}
	}
	return dto.MapDriftsToDTO(address, drifts, e.tolerance), nil
}

// exchangeRates returns the latest rate of every leveraged token. Cached rates
// take precedence over the stored ones, which may lag by one block tick.
func (e *executor) exchangeRates(ctx context.Context, tokens []schema.LeveragedToken) (map[string]*big.Int, error) {
	rates := make(map[string]*big.Int, len(tokens))
	for i := range tokens {
		rate, err := fixedpoint.ParseInt(tokens[i].ExchangeRate)
		if err != nil {
			return nil, fmt.Errorf("invalid exchange rate of %s: %w", tokens[i].Address, err)
		}
		rates[tokens[i].Address] = rate
	}

	if e.rateCache == nil {
		return rates, nil
	}

	cached, err := e.rateCache.GetExchangeRates(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read cached exchange rates, using stored rates", zap.Error(err))
		return rates, nil
	}
	if cached == nil {
		return rates, nil
	}
	for address, raw := range cached.Rates {
		if _, known := rates[address]; !known {
			continue
		}
		rate, err := fixedpoint.ParseInt(raw)
		if err != nil {
			logger.WarnCtx(ctx, "Ignoring malformed cached exchange rate",
				zap.String("leveraged_token", address),
				zap.String("rate", raw))
			continue
		}
		rates[address] = rate
	}
	return rates, nil
}

func (e *executor) databaseError(ctx context.Context, err error, message string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	logger.ErrorCtx(ctx, err, zap.String("message", message))
	return apierrors.NewDatabaseError(message)
}

func (e *executor) internalError(ctx context.Context, err error, message string) error {
	logger.ErrorCtx(ctx, err, zap.String("message", message))
	return apierrors.NewInternalError(message)
}
