package constants

import "github.com/feral-file/lt-indexer/internal/api/shared/types"

const (
	MAX_PAGE_SIZE        = 100
	MIN_PAGE_SIZE        = 1
	DEFAULT_USERS_LIMIT  = 20
	DEFAULT_TRADES_LIMIT = 20
	DEFAULT_TRADES_ORDER = types.OrderDesc
)
