package rest

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/lt-indexer/internal/api/shared/constants"
	"github.com/feral-file/lt-indexer/internal/api/shared/types"
	"github.com/feral-file/lt-indexer/internal/domain"
)

// ListUsersQueryParams holds query parameters for GET /users and GET /referrers
type ListUsersQueryParams struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=20"`
}

// UserTradesQueryParams holds query parameters for GET /users/:address/trades
type UserTradesQueryParams struct {
	// Filters
	Instrument string `form:"instrument"`
	Asset      string `form:"asset"`

	// Pagination
	After  string      `form:"after"`
	Before string      `form:"before"`
	Limit  int         `form:"limit,default=20"`
	Order  types.Order `form:"order,default=desc"`
}

// LatestTradesQueryParams holds query parameters for GET /trades/latest
type LatestTradesQueryParams struct {
	Limit int `form:"limit,default=20"`
}

func validateLimit(limit int) error {
	if limit < constants.MIN_PAGE_SIZE || limit > constants.MAX_PAGE_SIZE {
		return fmt.Errorf("limit must be between %d and %d", constants.MIN_PAGE_SIZE, constants.MAX_PAGE_SIZE)
	}
	return nil
}

// ParseListUsersQuery parses query parameters for GET /users
func ParseListUsersQuery(c *gin.Context) (*ListUsersQueryParams, error) {
	var params ListUsersQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	if params.Cursor != "" {
		if !domain.IsValidAddress(params.Cursor) {
			return nil, fmt.Errorf("invalid cursor: %s", params.Cursor)
		}
		params.Cursor = domain.NormalizeAddress(params.Cursor)
	}
	return &params, validateLimit(params.Limit)
}

// ParseUserTradesQuery parses query parameters for GET /users/:address/trades
func ParseUserTradesQuery(c *gin.Context) (*UserTradesQueryParams, error) {
	var params UserTradesQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	if params.Instrument != "" {
		if !domain.IsValidAddress(params.Instrument) {
			return nil, fmt.Errorf("invalid instrument address: %s", params.Instrument)
		}
		params.Instrument = domain.NormalizeAddress(params.Instrument)
	}
	if !params.Order.Valid() {
		return nil, fmt.Errorf("order must be %s or %s", types.OrderAsc, types.OrderDesc)
	}
	if params.After != "" && params.Before != "" {
		return nil, fmt.Errorf("cannot specify both after and before")
	}
	return &params, validateLimit(params.Limit)
}

// ParseLatestTradesQuery parses query parameters for GET /trades/latest
func ParseLatestTradesQuery(c *gin.Context) (*LatestTradesQueryParams, error) {
	var params LatestTradesQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	return &params, validateLimit(params.Limit)
}

// addressParam reads and normalizes an address path parameter
func addressParam(c *gin.Context, name string) (string, bool) {
	address := c.Param(name)
	if !domain.IsValidAddress(address) {
		return "", false
	}
	return domain.NormalizeAddress(address), true
}
