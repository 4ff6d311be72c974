package entity

const PriceWindowSize = 7

type PriceHistorySeries struct {
	Points    []PricePoint `json:"points"`
	Synthetic bool         `json:"synthetic"`
}

type TrendDirection string

const (
	TrendDown TrendDirection = "down"
	TrendUp   TrendDirection = "up"
	TrendFlat TrendDirection = "flat"
)

type PriceTrend struct {
	Direction     TrendDirection `json:"direction"`
	TrendingDown  bool           `json:"trendingDown"`
	Current       float64        `json:"current"`
	Lowest        float64        `json:"lowest"`
	Highest       float64        `json:"highest"`
	Average       float64        `json:"average"`
	ChangePercent float64        `json:"changePercent"`
	AtLowest      bool           `json:"atLowest"`
}
