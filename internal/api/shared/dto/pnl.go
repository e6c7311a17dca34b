package dto

// PositionPnl is the profit and loss of one instrument
type PositionPnl struct {
	Realized          string  `json:"realized"`
	Unrealized        string  `json:"unrealized"`
	UnrealizedPercent float64 `json:"unrealizedPercent"`
}

// PnlResponse is the replayed profit and loss of a user
type PnlResponse struct {
	TotalRealized   string                 `json:"totalRealized"`
	TotalUnrealized string                 `json:"totalUnrealized"`
	LeveragedTokens map[string]PositionPnl `json:"leveragedTokens"`
}

// PortfolioPosition is an instrument together with the user's position in it
type PortfolioPosition struct {
	InstrumentResponse
	UserBalance       string  `json:"userBalance"`
	PurchaseCost      string  `json:"purchaseCost"`
	RealizedProfit    string  `json:"realizedProfit"`
	UnrealizedProfit  string  `json:"unrealizedProfit"`
	UnrealizedPercent float64 `json:"unrealizedPercent"`
}

// PnlPoint is one point of a profit chart
type PnlPoint struct {
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
}

// PortfolioResponse is the current portfolio of a user
type PortfolioResponse struct {
	RealizedProfit   string              `json:"realizedProfit"`
	UnrealizedProfit string              `json:"unrealizedProfit"`
	LeveragedTokens  []PortfolioPosition `json:"leveragedTokens"`
	PnlChart         []PnlPoint          `json:"pnlChart"`
}
