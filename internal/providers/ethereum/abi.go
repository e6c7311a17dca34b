package ethereum

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// protocolABIJSON holds the events and view functions of the factory, leveraged token,
// referrals, global storage and helper contracts
const protocolABIJSON = `[
{"type":"event","name":"CreateLeveragedToken","anonymous":false,"inputs":[
	{"name":"creator","type":"address","indexed":true},
	{"name":"token","type":"address","indexed":true},
	{"name":"marketId","type":"uint32","indexed":true},
	{"name":"targetLeverage","type":"uint256","indexed":false},
	{"name":"isLong","type":"bool","indexed":false}]},
{"type":"event","name":"Mint","anonymous":false,"inputs":[
	{"name":"minter","type":"address","indexed":true},
	{"name":"to","type":"address","indexed":true},
	{"name":"baseAmount","type":"uint256","indexed":false},
	{"name":"ltAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"Redeem","anonymous":false,"inputs":[
	{"name":"sender","type":"address","indexed":true},
	{"name":"to","type":"address","indexed":true},
	{"name":"ltAmount","type":"uint256","indexed":false},
	{"name":"baseAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"PrepareRedeem","anonymous":false,"inputs":[
	{"name":"user","type":"address","indexed":true},
	{"name":"ltAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"ExecuteRedeem","anonymous":false,"inputs":[
	{"name":"user","type":"address","indexed":true},
	{"name":"ltAmount","type":"uint256","indexed":false},
	{"name":"baseAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"CancelRedeem","anonymous":false,"inputs":[
	{"name":"user","type":"address","indexed":true},
	{"name":"credit","type":"uint256","indexed":false}]},
{"type":"event","name":"Transfer","anonymous":false,"inputs":[
	{"name":"from","type":"address","indexed":true},
	{"name":"to","type":"address","indexed":true},
	{"name":"value","type":"uint256","indexed":false}]},
{"type":"event","name":"SetMintPaused","anonymous":false,"inputs":[
	{"name":"newPaused","type":"bool","indexed":false}]},
{"type":"event","name":"AddReferrer","anonymous":false,"inputs":[
	{"name":"user","type":"address","indexed":true},
	{"name":"referralCode","type":"string","indexed":false}]},
{"type":"event","name":"JoinWithReferral","anonymous":false,"inputs":[
	{"name":"referee","type":"address","indexed":true},
	{"name":"referrer","type":"address","indexed":true},
	{"name":"referralCode","type":"string","indexed":false}]},
{"type":"event","name":"ClaimRebate","anonymous":false,"inputs":[
	{"name":"sender","type":"address","indexed":true},
	{"name":"to","type":"address","indexed":true},
	{"name":"rebate","type":"uint256","indexed":false}]},
{"type":"event","name":"DonateRebate","anonymous":false,"inputs":[
	{"name":"referee","type":"address","indexed":true},
	{"name":"refereeRebate","type":"uint256","indexed":false},
	{"name":"referrerRebate","type":"uint256","indexed":false}]},
{"type":"event","name":"OwnershipTransferred","anonymous":false,"inputs":[
	{"name":"previousOwner","type":"address","indexed":true},
	{"name":"newOwner","type":"address","indexed":true}]},
{"type":"event","name":"SetAllMintsPaused","anonymous":false,"inputs":[
	{"name":"newPaused","type":"bool","indexed":false}]},
{"type":"event","name":"SetMinTransactionSize","anonymous":false,"inputs":[
	{"name":"newMinTransactionSize","type":"uint256","indexed":false}]},
{"type":"event","name":"SetMinLockAmount","anonymous":false,"inputs":[
	{"name":"newMinLockAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"SetRedemptionFee","anonymous":false,"inputs":[
	{"name":"newFee","type":"uint256","indexed":false}]},
{"type":"event","name":"SetExecuteRedemptionFee","anonymous":false,"inputs":[
	{"name":"newFee","type":"uint256","indexed":false}]},
{"type":"event","name":"SetStreamingFee","anonymous":false,"inputs":[
	{"name":"newFee","type":"uint256","indexed":false}]},
{"type":"event","name":"SetTreasuryFeeShare","anonymous":false,"inputs":[
	{"name":"newFeeShare","type":"uint256","indexed":false}]},
{"type":"event","name":"SetReferrerRebate","anonymous":false,"inputs":[
	{"name":"newRebate","type":"uint256","indexed":false}]},
{"type":"event","name":"SetRefereeRebate","anonymous":false,"inputs":[
	{"name":"newRebate","type":"uint256","indexed":false}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"getExchangeRates","stateMutability":"view","inputs":[],"outputs":[
	{"name":"","type":"tuple[]","components":[
		{"name":"leveragedTokenAddress","type":"address"},
		{"name":"exchangeRate","type":"uint256"}]}]}
]`

var protocolABI = mustParseABI(protocolABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// contractRole identifies which protocol contract emitted a log
type contractRole int

const (
	roleUnknown contractRole = iota
	roleFactory
	roleInstrument
	roleReferrals
	roleGlobalStorage
)

// eventsByRole lists the events accepted from each contract
var eventsByRole = map[contractRole][]string{
	roleFactory: {"CreateLeveragedToken"},
	roleInstrument: {
		"Mint", "Redeem", "PrepareRedeem", "ExecuteRedeem", "CancelRedeem", "Transfer", "SetMintPaused",
	},
	roleReferrals: {"AddReferrer", "JoinWithReferral", "ClaimRebate", "DonateRebate"},
	roleGlobalStorage: {
		"OwnershipTransferred",
		"SetAllMintsPaused",
		"SetMinTransactionSize",
		"SetMinLockAmount",
		"SetRedemptionFee",
		"SetExecuteRedemptionFee",
		"SetStreamingFee",
		"SetTreasuryFeeShare",
		"SetReferrerRebate",
		"SetRefereeRebate",
	},
}

// topic returns the topic0 hash of a protocol event
func topic(name string) common.Hash {
	return protocolABI.Events[name].ID
}

// protocolTopics returns the topic0 of every event the indexer decodes
func protocolTopics() []common.Hash {
	var topics []common.Hash
	for _, role := range []contractRole{roleFactory, roleInstrument, roleReferrals, roleGlobalStorage} {
		for _, name := range eventsByRole[role] {
			topics = append(topics, topic(name))
		}
	}
	return topics
}

func accepts(role contractRole, eventName string) bool {
	for _, name := range eventsByRole[role] {
		if name == eventName {
			return true
		}
	}
	return false
}

// exchangeRateTuple mirrors the getExchangeRates() return element
type exchangeRateTuple struct {
	LeveragedTokenAddress common.Address
	ExchangeRate          *big.Int
}
