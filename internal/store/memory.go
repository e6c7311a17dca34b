package store

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

type balanceKey struct {
	user           string
	leveragedToken string
}

type memoryData struct {
	processed map[string]schema.ProcessedEvent
	tokens    map[string]schema.LeveragedToken
	users     map[string]schema.User
	balances  map[balanceKey]schema.Balance
	trades    map[string]schema.Trade
	transfers map[string]schema.Transfer
	pending   map[balanceKey]schema.PendingRedemption
	global    *schema.GlobalStorage
	kv        map[string]string
}

func newMemoryData() memoryData {
	return memoryData{
		processed: make(map[string]schema.ProcessedEvent),
		tokens:    make(map[string]schema.LeveragedToken),
		users:     make(map[string]schema.User),
		balances:  make(map[balanceKey]schema.Balance),
		trades:    make(map[string]schema.Trade),
		transfers: make(map[string]schema.Transfer),
		pending:   make(map[balanceKey]schema.PendingRedemption),
		kv:        make(map[string]string),
	}
}

func (d memoryData) clone() memoryData {
	c := memoryData{
		processed: maps.Clone(d.processed),
		tokens:    maps.Clone(d.tokens),
		users:     maps.Clone(d.users),
		balances:  maps.Clone(d.balances),
		trades:    maps.Clone(d.trades),
		transfers: maps.Clone(d.transfers),
		pending:   maps.Clone(d.pending),
		kv:        maps.Clone(d.kv),
	}
	if d.global != nil {
		g := *d.global
		c.global = &g
	}
	return c
}

// memoryStore is an in-process Store used by tests and local runs.
// Rows are stored by value so callers never share state with the store.
type memoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data memoryData
	now  func() time.Time
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore() Store {
	return &memoryStore{data: newMemoryData(), now: time.Now}
}

// WithTx serializes transactions and restores a snapshot when fn fails
func (s *memoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memoryStore) GetBlockCursor(ctx context.Context, chain string) (uint64, error) {
	value, _ := s.GetKeyValue(ctx, blockCursorKey(chain))
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}
	return n, nil
}

func (s *memoryStore) SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error {
	return s.SetKeyValue(ctx, blockCursorKey(chain), strconv.FormatUint(blockNumber, 10))
}

func (s *memoryStore) GetKeyValue(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.kv[key], nil
}

func (s *memoryStore) SetKeyValue(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.kv[key] = value
	return nil
}

func (s *memoryStore) MarkEventProcessed(_ context.Context, event *schema.ProcessedEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.processed[event.ID]; ok {
		return false, nil
	}
	e := *event
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = s.now()
	}
	s.data.processed[event.ID] = e
	return true, nil
}

func (s *memoryStore) GetProcessedEvent(_ context.Context, id string) (*schema.ProcessedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data.processed[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *memoryStore) CreateLeveragedToken(_ context.Context, token *schema.LeveragedToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.tokens[token.Address]; ok {
		return false, nil
	}
	t := *token
	if t.ExchangeRate == "" {
		t.ExchangeRate = "0"
	}
	if t.TotalSupply == "" {
		t.TotalSupply = "0"
	}
	t.UpdatedAt = s.now()
	s.data.tokens[token.Address] = t
	return true, nil
}

func (s *memoryStore) GetLeveragedToken(_ context.Context, address string) (*schema.LeveragedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data.tokens[address]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memoryStore) ListLeveragedTokens(_ context.Context) ([]schema.LeveragedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokens := make([]schema.LeveragedToken, 0, len(s.data.tokens))
	for _, t := range s.data.tokens {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].CreatedBlock != tokens[j].CreatedBlock {
			return tokens[i].CreatedBlock < tokens[j].CreatedBlock
		}
		return tokens[i].Address < tokens[j].Address
	})
	return tokens, nil
}

func (s *memoryStore) UpdateLeveragedToken(_ context.Context, address string, fn func(*schema.LeveragedToken) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.tokens[address]
	if !ok {
		return domain.ErrInstrumentNotFound
	}
	if err := fn(&t); err != nil {
		return err
	}
	t.UpdatedAt = s.now()
	s.data.tokens[address] = t
	return nil
}

func (s *memoryStore) SetExchangeRates(_ context.Context, rates map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for address, rate := range rates {
		t, ok := s.data.tokens[address]
		if !ok {
			continue
		}
		t.ExchangeRate = rate
		t.UpdatedAt = s.now()
		s.data.tokens[address] = t
		updated++
	}
	return updated, nil
}

func (s *memoryStore) EnsureUser(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.users[address]; ok {
		return nil
	}
	u := schema.NewUser(address)
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.data.users[address] = *u
	return nil
}

func (s *memoryStore) GetUser(_ context.Context, address string) (*schema.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data.users[address]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *memoryStore) GetUserByReferralCode(_ context.Context, code string) (*schema.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.data.users {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) UpdateUser(_ context.Context, address string, fn func(*schema.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[address]
	if !ok {
		return domain.ErrUserNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = s.now()
	s.data.users[address] = u
	return nil
}

func (s *memoryStore) ListUsers(_ context.Context, filter UserFilter) ([]schema.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]schema.User, 0)
	for _, u := range s.data.users {
		if filter.AfterAddress != "" && u.Address <= filter.AfterAddress {
			continue
		}
		if filter.ReferrersOnly && u.ReferralCode == nil {
			continue
		}
		if filter.ReferrerAddress != "" && (u.ReferrerAddress == nil || *u.ReferrerAddress != filter.ReferrerAddress) {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Address < users[j].Address })
	if filter.Limit > 0 && len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

func (s *memoryStore) EnsureBalance(_ context.Context, user, leveragedToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{user, leveragedToken}
	if _, ok := s.data.balances[key]; ok {
		return nil
	}
	b := schema.NewBalance(user, leveragedToken)
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	s.data.balances[key] = *b
	return nil
}

func (s *memoryStore) GetBalance(_ context.Context, user, leveragedToken string) (*schema.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data.balances[balanceKey{user, leveragedToken}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *memoryStore) UpdateBalance(_ context.Context, user, leveragedToken string, fn func(*schema.Balance) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{user, leveragedToken}
	b, ok := s.data.balances[key]
	if !ok {
		return domain.ErrBalanceNotFound
	}
	if err := fn(&b); err != nil {
		return err
	}
	b.UpdatedAt = s.now()
	s.data.balances[key] = b
	return nil
}

func (s *memoryStore) ListBalancesByUser(_ context.Context, user string) ([]schema.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balances := make([]schema.Balance, 0)
	for key, b := range s.data.balances {
		if key.user == user {
			balances = append(balances, b)
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].LeveragedToken < balances[j].LeveragedToken })
	return balances, nil
}

func (s *memoryStore) ListBalances(_ context.Context, filter BalanceFilter) ([]schema.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balances := make([]schema.Balance, 0, len(s.data.balances))
	for _, b := range s.data.balances {
		if filter.AfterUser != "" {
			if b.UserAddress < filter.AfterUser ||
				(b.UserAddress == filter.AfterUser && b.LeveragedToken <= filter.AfterLeveragedToken) {
				continue
			}
		}
		balances = append(balances, b)
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].UserAddress != balances[j].UserAddress {
			return balances[i].UserAddress < balances[j].UserAddress
		}
		return balances[i].LeveragedToken < balances[j].LeveragedToken
	})
	if filter.Limit > 0 && len(balances) > filter.Limit {
		balances = balances[:filter.Limit]
	}
	return balances, nil
}

func (s *memoryStore) CreateTrade(_ context.Context, trade *schema.Trade) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.trades[trade.ID]; ok {
		return false, nil
	}
	s.data.trades[trade.ID] = *trade
	return true, nil
}

func (s *memoryStore) GetTrade(_ context.Context, id string) (*schema.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data.trades[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func tradeLess(a, b *schema.Trade) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

func (s *memoryStore) ListTrades(_ context.Context, filter TradeFilter) ([]schema.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cursor *schema.Trade
	if filter.Cursor != nil {
		cursor = &schema.Trade{Timestamp: filter.Cursor.Timestamp, ID: filter.Cursor.ID}
	}
	towardsSmaller := filter.Desc != filter.Backward

	trades := make([]schema.Trade, 0)
	for _, t := range s.data.trades {
		if filter.User != "" {
			owner := t.Sender
			if t.IsBuy {
				owner = t.Recipient
			}
			if owner != filter.User {
				continue
			}
		}
		if filter.LeveragedToken != "" && t.LeveragedToken != filter.LeveragedToken {
			continue
		}
		if filter.TargetAsset != "" {
			token, ok := s.data.tokens[t.LeveragedToken]
			if !ok || token.TargetAsset != filter.TargetAsset {
				continue
			}
		}
		if cursor != nil {
			if towardsSmaller && !tradeLess(&t, cursor) {
				continue
			}
			if !towardsSmaller && !tradeLess(cursor, &t) {
				continue
			}
		}
		trades = append(trades, t)
	}

	sort.Slice(trades, func(i, j int) bool {
		if towardsSmaller {
			return tradeLess(&trades[j], &trades[i])
		}
		return tradeLess(&trades[i], &trades[j])
	})
	if filter.Limit > 0 && len(trades) > filter.Limit {
		trades = trades[:filter.Limit]
	}
	if filter.Backward {
		reverseTrades(trades)
	}
	return trades, nil
}

func (s *memoryStore) CreateTransfer(_ context.Context, transfer *schema.Transfer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.transfers[transfer.ID]; ok {
		return false, nil
	}
	s.data.transfers[transfer.ID] = *transfer
	return true, nil
}

func (s *memoryStore) ListTransfers(_ context.Context, filter TransferFilter) ([]schema.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transfers := make([]schema.Transfer, 0)
	for _, t := range s.data.transfers {
		if filter.User != "" && t.Sender != filter.User && t.Recipient != filter.User {
			continue
		}
		if filter.LeveragedToken != "" && t.LeveragedToken != filter.LeveragedToken {
			continue
		}
		transfers = append(transfers, t)
	}
	sort.Slice(transfers, func(i, j int) bool {
		a, b := transfers[i], transfers[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		return a.LogIndex < b.LogIndex
	})
	if filter.Limit > 0 && len(transfers) > filter.Limit {
		transfers = transfers[:filter.Limit]
	}
	return transfers, nil
}

func (s *memoryStore) GetPendingRedemption(_ context.Context, user, leveragedToken string) (*schema.PendingRedemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.pending[balanceKey{user, leveragedToken}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memoryStore) CreatePendingRedemption(_ context.Context, pending *schema.PendingRedemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{pending.UserAddress, pending.LeveragedToken}
	if _, ok := s.data.pending[key]; ok {
		return fmt.Errorf("failed to create pending redemption: duplicate key %s/%s", key.user, key.leveragedToken)
	}
	p := *pending
	p.UpdatedAt = s.now()
	s.data.pending[key] = p
	return nil
}

func (s *memoryStore) UpdatePendingRedemption(_ context.Context, user, leveragedToken string, fn func(*schema.PendingRedemption) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{user, leveragedToken}
	p, ok := s.data.pending[key]
	if !ok {
		return domain.ErrPendingRedemptionNotFound
	}
	if err := fn(&p); err != nil {
		return err
	}
	p.UpdatedAt = s.now()
	s.data.pending[key] = p
	return nil
}

func (s *memoryStore) DeletePendingRedemption(_ context.Context, user, leveragedToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.pending, balanceKey{user, leveragedToken})
	return nil
}

func (s *memoryStore) GetGlobalStorage(_ context.Context) (*schema.GlobalStorage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.global == nil {
		return nil, nil
	}
	g := *s.data.global
	return &g, nil
}

func (s *memoryStore) UpdateGlobalStorage(_ context.Context, fn func(*schema.GlobalStorage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var g schema.GlobalStorage
	if s.data.global != nil {
		g = *s.data.global
	} else {
		g = *schema.NewGlobalStorage(domain.GlobalStorageID)
	}
	if err := fn(&g); err != nil {
		return err
	}
	g.UpdatedAt = s.now()
	s.data.global = &g
	return nil
}

func (s *memoryStore) GetProtocolStats(_ context.Context) (*ProtocolStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	margin := new(big.Int)
	notional := new(big.Int)
	users := make(map[string]struct{})
	for _, t := range s.data.trades {
		token, ok := s.data.tokens[t.LeveragedToken]
		if !ok {
			continue
		}
		base, err := fixedpoint.ParseInt(t.BaseAssetAmount)
		if err != nil {
			return nil, err
		}
		leverage, err := fixedpoint.ParseInt(token.TargetLeverage)
		if err != nil {
			return nil, err
		}
		margin.Add(margin, base)
		notional.Add(notional, fixedpoint.Mul(base, leverage))
		if t.IsBuy {
			users[strings.ToLower(t.Recipient)] = struct{}{}
		} else {
			users[strings.ToLower(t.Sender)] = struct{}{}
		}
	}

	var trades int64
	for _, t := range s.data.trades {
		if _, ok := s.data.tokens[t.LeveragedToken]; ok {
			trades++
		}
	}

	markets := make(map[uint32]struct{})
	for _, token := range s.data.tokens {
		markets[token.MarketID] = struct{}{}
	}

	return &ProtocolStats{
		MarginVolume:    margin.String(),
		NotionalVolume:  notional.String(),
		TotalTrades:     trades,
		UniqueUsers:     int64(len(users)),
		LeveragedTokens: int64(len(s.data.tokens)),
		SupportedAssets: int64(len(markets)),
	}, nil
}

func (s *memoryStore) GetDailyVolumes(_ context.Context) ([]DailyVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		margin, notional *big.Int
		trades           int64
	}
	days := make(map[time.Time]*acc)
	for _, t := range s.data.trades {
		token, ok := s.data.tokens[t.LeveragedToken]
		if !ok {
			continue
		}
		base, err := fixedpoint.ParseInt(t.BaseAssetAmount)
		if err != nil {
			return nil, err
		}
		leverage, err := fixedpoint.ParseInt(token.TargetLeverage)
		if err != nil {
			return nil, err
		}
		ts := t.Timestamp.UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		a, ok := days[day]
		if !ok {
			a = &acc{margin: new(big.Int), notional: new(big.Int)}
			days[day] = a
		}
		a.margin.Add(a.margin, base)
		a.notional.Add(a.notional, fixedpoint.Mul(base, leverage))
		a.trades++
	}

	volumes := make([]DailyVolume, 0, len(days))
	for day, a := range days {
		volumes = append(volumes, DailyVolume{
			Day:            day,
			MarginVolume:   a.margin.String(),
			NotionalVolume: a.notional.String(),
			Trades:         a.trades,
		})
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Day.Before(volumes[j].Day) })
	return volumes, nil
}
