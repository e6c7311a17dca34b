package dto

import (
	"time"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
)

// formatAmount renders a stored base-10 integer as a decimal string. Values
// that cannot be parsed are returned unchanged.
func formatAmount(raw string, decimals int) string {
	v, err := fixedpoint.ParseInt(raw)
	if err != nil {
		return raw
	}
	return fixedpoint.FormatUnits(v, decimals)
}

func formatBase(raw string) string {
	return formatAmount(raw, fixedpoint.BaseDecimals)
}

func formatTokens(raw string) string {
	return formatAmount(raw, fixedpoint.Decimals)
}

func formatOptional(raw *string, decimals int) *string {
	if raw == nil {
		return nil
	}
	v := formatAmount(*raw, decimals)
	return &v
}

func unixMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
