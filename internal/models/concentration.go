package models

// ExposureMapping says that holding Symbol exposes the holder to Underlying,
// scaled by Factor. A symbol may own several mappings.
type ExposureMapping struct {
	Symbol     string  `json:"symbol"`
	Underlying string  `json:"underlying"`
	Factor     float64 `json:"factor"`
}

// Exposure is one resolved (ultimate underlying, cumulative factor) pair.
type Exposure struct {
	Underlying string  `json:"underlying"`
	Factor     float64 `json:"factor"`
}

// Position is a current holding with its market value.
type Position struct {
	Symbol       string  `json:"symbol"`
	MarketValue  float64 `json:"market_value"`
	Quantity     float64 `json:"quantity"`
	CurrentPrice float64 `json:"current_price"`
}

// Contribution records how one position feeds an underlying's exposure.
type Contribution struct {
	Symbol        string  `json:"symbol"`
	MarketValue   float64 `json:"market_value"`
	ExposureValue float64 `json:"exposure_value"`
	Factor        float64 `json:"factor"`
	Quantity      float64 `json:"quantity"`
	CurrentPrice  float64 `json:"current_price"`
}

// ConcentrationItem is the aggregated exposure to one ultimate underlying.
type ConcentrationItem struct {
	Underlying            string         `json:"underlying"`
	TotalExposure         float64        `json:"total_exposure"`
	Percentage            float64        `json:"percentage"`
	ContributingPositions []Contribution `json:"contributing_positions"`
}

// ContributingSymbols returns the distinct contributing symbols ordered by
// their summed exposure, largest first.
func (c ConcentrationItem) ContributingSymbols() []string {
	totals := make(map[string]float64)
	var order []string
	for _, p := range c.ContributingPositions {
		if _, ok := totals[p.Symbol]; !ok {
			order = append(order, p.Symbol)
		}
		totals[p.Symbol] += p.ExposureValue
	}
	// insertion sort keeps first-seen order on ties
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && totals[order[j]] > totals[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order
}

// ChainLink is one hop of a display exposure chain.
type ChainLink struct {
	Symbol string  `json:"symbol"`
	Factor float64 `json:"factor"`
}
