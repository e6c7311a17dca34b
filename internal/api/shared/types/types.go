package types

import "strings"

// Order is the sort direction of a trade listing
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Desc reports whether the newest trade comes first
func (o Order) Desc() bool {
	return o == OrderDesc
}

// Valid checks if an order is valid
func (o Order) Valid() bool {
	return o == OrderAsc || o == OrderDesc
}

// UnmarshalParam lets gin bind "?order=DESC" case-insensitively
func (o *Order) UnmarshalParam(param string) error {
	*o = Order(strings.ToLower(strings.TrimSpace(param)))
	return nil
}
