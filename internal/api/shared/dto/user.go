package dto

import (
	"math/big"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

// UserResponse represents the trading and referral aggregates of a user
type UserResponse struct {
	Address              string  `json:"address"`
	TradeCount           int64   `json:"tradeCount"`
	MintVolumeNominal    string  `json:"mintVolumeNominal"`
	RedeemVolumeNominal  string  `json:"redeemVolumeNominal"`
	TotalVolumeNominal   string  `json:"totalVolumeNominal"`
	MintVolumeNotional   string  `json:"mintVolumeNotional"`
	RedeemVolumeNotional string  `json:"redeemVolumeNotional"`
	TotalVolumeNotional  string  `json:"totalVolumeNotional"`
	LastTradeTimestamp   *int64  `json:"lastTradeTimestamp"`
	RealizedProfit       string  `json:"realizedProfit"`
	ReferralCode         *string `json:"referralCode"`
	ReferrerCode         *string `json:"referrerCode"`
	ReferrerAddress      *string `json:"referrerAddress"`
	ReferredUserCount    int64   `json:"referredUserCount"`
	TotalRebates         string  `json:"totalRebates"`
	ClaimedRebates       string  `json:"claimedRebates"`
}

// UserListResponse is a page of users ordered by address
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	// NextCursor is the address to pass as cursor for the next page
	NextCursor *string `json:"nextCursor"`
}

// ReferralsResponse summarizes the referral position of a user
type ReferralsResponse struct {
	Address           string  `json:"address"`
	ReferralCode      *string `json:"referralCode"`
	ReferrerCode      *string `json:"referrerCode"`
	ReferrerAddress   *string `json:"referrerAddress"`
	IsJoined          bool    `json:"isJoined"`
	ReferredUserCount int64   `json:"referredUserCount"`
	ReferrerRebates   string  `json:"referrerRebates"`
	RefereeRebates    string  `json:"refereeRebates"`
	TotalRebates      string  `json:"totalRebates"`
	ClaimedRebates    string  `json:"claimedRebates"`
	ClaimableRebates  string  `json:"claimableRebates"`
}

// ReferralCodeResponse tells whether a referral code is registered
type ReferralCodeResponse struct {
	Code     string  `json:"code"`
	Valid    bool    `json:"valid"`
	Referrer *string `json:"referrer"`
}

// MapUserToDTO maps a user row to its response
func MapUserToDTO(u *schema.User) *UserResponse {
	return &UserResponse{
		Address:              u.Address,
		TradeCount:           u.TradeCount,
		MintVolumeNominal:    formatBase(u.MintVolumeNominal),
		RedeemVolumeNominal:  formatBase(u.RedeemVolumeNominal),
		TotalVolumeNominal:   formatBase(u.TotalVolumeNominal),
		MintVolumeNotional:   formatBase(u.MintVolumeNotional),
		RedeemVolumeNotional: formatBase(u.RedeemVolumeNotional),
		TotalVolumeNotional:  formatBase(u.TotalVolumeNotional),
		LastTradeTimestamp:   unixMillis(u.LastTradeTimestamp),
		RealizedProfit:       formatBase(u.RealizedProfit),
		ReferralCode:         u.ReferralCode,
		ReferrerCode:         u.ReferrerCode,
		ReferrerAddress:      u.ReferrerAddress,
		ReferredUserCount:    u.ReferredUserCount,
		TotalRebates:         formatBase(u.TotalRebates),
		ClaimedRebates:       formatBase(u.ClaimedRebates),
	}
}

// MapReferralsToDTO maps a user row to its referral summary. An unknown user
// has not joined and has nothing to claim.
func MapReferralsToDTO(address string, u *schema.User) *ReferralsResponse {
	if u == nil {
		u = schema.NewUser(address)
	}

	claimable := "0"
	total, errTotal := fixedpoint.ParseInt(u.TotalRebates)
	claimed, errClaimed := fixedpoint.ParseInt(u.ClaimedRebates)
	if errTotal == nil && errClaimed == nil {
		claimable = fixedpoint.FormatUnits(new(big.Int).Sub(total, claimed), fixedpoint.BaseDecimals)
	}

	return &ReferralsResponse{
		Address:           u.Address,
		ReferralCode:      u.ReferralCode,
		ReferrerCode:      u.ReferrerCode,
		ReferrerAddress:   u.ReferrerAddress,
		IsJoined:          u.ReferrerAddress != nil,
		ReferredUserCount: u.ReferredUserCount,
		ReferrerRebates:   formatBase(u.ReferrerRebates),
		RefereeRebates:    formatBase(u.RefereeRebates),
		TotalRebates:      formatBase(u.TotalRebates),
		ClaimedRebates:    formatBase(u.ClaimedRebates),
		ClaimableRebates:  claimable,
	}
}
