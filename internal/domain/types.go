package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainHyperEVMMainnet Chain = "eip155:999"
	ChainHyperEVMTestnet Chain = "eip155:998"
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainHyperEVMMainnet ||
		chain == ChainHyperEVMTestnet ||
		chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia
}

// EventType represents the type of ledger event
type EventType string

const (
	// Factory
	EventTypeInstrumentCreated EventType = "instrument_created"

	// Leveraged token
	EventTypeMint          EventType = "mint"
	EventTypeRedeem        EventType = "redeem"
	EventTypePrepareRedeem EventType = "prepare_redeem"
	EventTypeExecuteRedeem EventType = "execute_redeem"
	EventTypeCancelRedeem  EventType = "cancel_redeem"
	EventTypeTransfer      EventType = "transfer"
	EventTypeMintPausedSet EventType = "mint_paused_set"

	// Referrals
	EventTypeAddReferrer      EventType = "add_referrer"
	EventTypeJoinWithReferral EventType = "join_with_referral"
	EventTypeClaimRebate      EventType = "claim_rebate"
	EventTypeDonateRebate     EventType = "donate_rebate"

	// Global storage
	EventTypeGovernanceUpdated EventType = "governance_updated"

	// Synthetic event emitted once per new block to refresh exchange rates
	EventTypeBlockTick EventType = "block_tick"
)

// GovernanceParam names a single protocol parameter held by the global storage contract
type GovernanceParam string

const (
	GovernanceOwner                GovernanceParam = "owner"
	GovernanceAllMintsPaused       GovernanceParam = "all_mints_paused"
	GovernanceMinTransactionSize   GovernanceParam = "min_transaction_size"
	GovernanceMinLockAmount        GovernanceParam = "min_lock_amount"
	GovernanceRedemptionFee        GovernanceParam = "redemption_fee"
	GovernanceExecuteRedemptionFee GovernanceParam = "execute_redemption_fee"
	GovernanceStreamingFee         GovernanceParam = "streaming_fee"
	GovernanceTreasuryFeeShare     GovernanceParam = "treasury_fee_share"
	GovernanceReferrerRebate       GovernanceParam = "referrer_rebate"
	GovernanceRefereeRebate        GovernanceParam = "referee_rebate"
)

// LedgerEvent represents a decoded protocol event.
// This is the standard format published to NATS.
//
// Party fields by event type:
//
//	mint:               FromAddress=minter, ToAddress=recipient
//	redeem:             FromAddress=token owner, ToAddress=base asset recipient
//	prepare/execute/cancel_redeem: FromAddress=user
//	transfer:           FromAddress=sender, ToAddress=recipient
//	instrument_created: FromAddress=creator
//	add_referrer:       FromAddress=user
//	join_with_referral: FromAddress=referee, ToAddress=referrer
//	claim_rebate:       FromAddress=claimer, ToAddress=recipient
//	donate_rebate:      FromAddress=referee
//	governance_updated: ToAddress=new owner (owner parameter only)
type LedgerEvent struct {
	Chain           Chain     `json:"chain"`                // e.g., "eip155:999"
	EventType       EventType `json:"event_type"`           // see EventType constants
	ContractAddress string    `json:"contract_address"`     // emitting contract
	Instrument      string    `json:"instrument,omitempty"` // leveraged token the event concerns
	TxHash          string    `json:"tx_hash"`              // transaction hash
	LogIndex        uint64    `json:"log_index"`            // log index in the block
	TxIndex         uint64    `json:"tx_index"`             // transaction index in the block
	BlockNumber     uint64    `json:"block_number"`         // block number
	BlockHash       *string   `json:"block_hash,omitempty"` // block hash (optional)
	Timestamp       time.Time `json:"timestamp"`            // block timestamp

	FromAddress string `json:"from_address,omitempty"`
	ToAddress   string `json:"to_address,omitempty"`

	// Amounts are base-10 integer strings. Base amounts carry 6 decimals,
	// leveraged token amounts carry 18.
	BaseAmount     string `json:"base_amount,omitempty"`
	LTAmount       string `json:"lt_amount,omitempty"`
	RefereeRebate  string `json:"referee_rebate,omitempty"`
	ReferrerRebate string `json:"referrer_rebate,omitempty"`

	// Instrument creation
	MarketID       uint32 `json:"market_id,omitempty"`
	TargetLeverage string `json:"target_leverage,omitempty"` // 18 decimals
	IsLong         bool   `json:"is_long,omitempty"`

	ReferralCode string `json:"referral_code,omitempty"`

	Paused *bool `json:"paused,omitempty"`

	Parameter GovernanceParam `json:"parameter,omitempty"`
	Value     string          `json:"value,omitempty"`
}

// ID returns the identifier of the event, unique per chain
func (e *LedgerEvent) ID() string {
	if e.EventType == EventTypeBlockTick {
		return fmt.Sprintf("block:%d", e.BlockNumber)
	}
	return fmt.Sprintf("%s:%d", strings.ToLower(e.TxHash), e.LogIndex)
}

// RowID returns the deterministic UUID of rows derived from this event
func (e *LedgerEvent) RowID() string {
	return DeterministicID(e.TxHash, e.LogIndex)
}

// Fingerprint returns the canonical JSON (RFC 8785) of the event and its SHA-256 digest
func (e *LedgerEvent) Fingerprint() (string, []byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", nil, fmt.Errorf("failed to canonicalize event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), canonical, nil
}

// Valid checks that the fields required by the event type are present and well formed
func (e *LedgerEvent) Valid() bool {
	if !IsValidChain(e.Chain) || e.Timestamp.IsZero() {
		return false
	}
	if e.EventType != EventTypeBlockTick && e.TxHash == "" {
		return false
	}

	switch e.EventType {
	case EventTypeInstrumentCreated:
		return validAddress(e.FromAddress) && validAddress(e.Instrument) && validAmount(e.TargetLeverage)
	case EventTypeMint:
		return validAddress(e.Instrument) && validAddress(e.FromAddress) && validAddress(e.ToAddress) &&
			validAmount(e.BaseAmount) && validAmount(e.LTAmount)
	case EventTypeRedeem:
		return validAddress(e.Instrument) && validAddress(e.FromAddress) && validAddress(e.ToAddress) &&
			validAmount(e.BaseAmount) && validAmount(e.LTAmount)
	case EventTypeExecuteRedeem:
		return validAddress(e.Instrument) && validAddress(e.FromAddress) &&
			validAmount(e.BaseAmount) && validAmount(e.LTAmount)
	case EventTypePrepareRedeem, EventTypeCancelRedeem:
		return validAddress(e.Instrument) && validAddress(e.FromAddress) && validAmount(e.LTAmount)
	case EventTypeTransfer:
		return validAddress(e.Instrument) && validAddress(e.FromAddress) && validAddress(e.ToAddress) &&
			validAmount(e.LTAmount)
	case EventTypeMintPausedSet:
		return validAddress(e.Instrument) && e.Paused != nil
	case EventTypeAddReferrer:
		return validAddress(e.FromAddress) && e.ReferralCode != ""
	case EventTypeJoinWithReferral:
		return validAddress(e.FromAddress) && validAddress(e.ToAddress) && e.ReferralCode != ""
	case EventTypeClaimRebate:
		return validAddress(e.FromAddress) && validAddress(e.ToAddress) && validAmount(e.BaseAmount)
	case EventTypeDonateRebate:
		return validAddress(e.FromAddress) && validAmount(e.RefereeRebate) && validAmount(e.ReferrerRebate)
	case EventTypeGovernanceUpdated:
		return validGovernance(e)
	case EventTypeBlockTick:
		return true
	default:
		return false
	}
}

func validGovernance(e *LedgerEvent) bool {
	switch e.Parameter {
	case GovernanceOwner:
		return validAddress(e.ToAddress)
	case GovernanceAllMintsPaused:
		return e.Paused != nil
	case GovernanceMinTransactionSize,
		GovernanceMinLockAmount,
		GovernanceRedemptionFee,
		GovernanceExecuteRedemptionFee,
		GovernanceStreamingFee,
		GovernanceTreasuryFeeShare,
		GovernanceReferrerRebate,
		GovernanceRefereeRebate:
		return validAmount(e.Value)
	default:
		return false
	}
}

// ExchangeRate is the value of one leveraged token in base asset, scaled by 10^18
type ExchangeRate struct {
	Instrument string
	Rate       *big.Int
}

// TokenMetadata holds the ERC-20 metadata read from a leveraged token contract
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// TargetAsset derives the underlying asset from a leveraged token name
// ("BTC 3x Long" -> "BTC")
func TargetAsset(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DeterministicID derives a name-based UUID from a transaction hash and log index,
// so that reprocessing an event yields the same row identifier.
func DeterministicID(txHash string, logIndex uint64) string {
	name := fmt.Sprintf("%s:%d", strings.ToLower(txHash), logIndex)
	return uuid.NewSHA1(ledgerNamespace, []byte(name)).String()
}

// NormalizeAddress normalizes an address to its EIP-55 checksum form
func NormalizeAddress(address string) string {
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return common.HexToAddress(address).Hex()
	}
	return address
}

// NormalizeAddresses normalizes a list of addresses in place
func NormalizeAddresses(addresses []string) []string {
	for i, address := range addresses {
		addresses[i] = NormalizeAddress(address)
	}
	return addresses
}

// AddressMatch compares two addresses case-insensitively
func AddressMatch(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsZeroAddress reports whether address is empty or the zero address
func IsZeroAddress(address string) bool {
	return address == "" || AddressMatch(address, ZeroAddress)
}

// IsValidAddress reports whether address is a 20-byte hex address
func IsValidAddress(address string) bool {
	return validAddress(address)
}

func validAddress(address string) bool {
	return common.IsHexAddress(address)
}

func validAmount(amount string) bool {
	v, ok := new(big.Int).SetString(amount, 10)
	return ok && v.Sign() >= 0
}
