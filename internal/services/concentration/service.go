package concentration

import (
	"sort"
	"strings"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
	"github.com/bobmcallan/holdfast/internal/models"
)

// Compile-time interface check
var _ interfaces.ConcentrationService = (*Service)(nil)

// Service implements ConcentrationService
type Service struct {
	store    *MappingStore
	resolver *Resolver
	logger   *common.Logger
}

// NewService parses the raw exposure_mappings section and builds the service.
// A malformed mapping fails construction.
func NewService(raw map[string]any, logger *common.Logger) (*Service, error) {
	store, err := ParseMappings(raw)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("symbols", store.Len()).Msg("Exposure mappings loaded")
	return NewServiceFromStore(store, logger), nil
}

// NewServiceFromStore builds the service over an already parsed store.
func NewServiceFromStore(store *MappingStore, logger *common.Logger) *Service {
	return &Service{
		store:    store,
		resolver: NewResolver(store),
		logger:   logger,
	}
}

// Mappings exposes the underlying store.
func (s *Service) Mappings() *MappingStore {
	return s.store
}

// Resolve maps a symbol to its ultimate underlyings and cumulative factors.
func (s *Service) Resolve(symbol string) []models.Exposure {
	return s.resolver.Resolve(symbol)
}

// CalculateConcentrations sums market value times cumulative factor per
// ultimate underlying. Percentages are relative to the total market value of
// all positions; a zero total yields no items. Items are ordered by exposure,
// largest first, ties keeping first-seen order. topN > 0 truncates afterwards.
func (s *Service) CalculateConcentrations(positions []models.Position, topN int) []models.ConcentrationItem {
	total := 0.0
	for _, p := range positions {
		total += p.MarketValue
	}
	if total == 0 {
		return []models.ConcentrationItem{}
	}

	index := make(map[string]int)
	var items []models.ConcentrationItem

	for _, p := range positions {
		if p.MarketValue == 0 {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))

		for _, exp := range s.resolver.Resolve(symbol) {
			value := p.MarketValue * exp.Factor

			i, ok := index[exp.Underlying]
			if !ok {
				i = len(items)
				index[exp.Underlying] = i
				items = append(items, models.ConcentrationItem{Underlying: exp.Underlying})
			}
			items[i].TotalExposure += value
			items[i].ContributingPositions = append(items[i].ContributingPositions, models.Contribution{
				Symbol:        symbol,
				MarketValue:   p.MarketValue,
				ExposureValue: value,
				Factor:        exp.Factor,
				Quantity:      p.Quantity,
				CurrentPrice:  p.CurrentPrice,
			})
		}
	}

	for i := range items {
		items[i].Percentage = items[i].TotalExposure / total * 100
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].TotalExposure > items[b].TotalExposure
	})

	if topN > 0 && len(items) > topN {
		items = items[:topN]
	}

	s.logger.Debug().Int("positions", len(positions)).Int("underlyings", len(items)).
		Float64("portfolio_value", total).Msg("Concentrations calculated")
	return items
}

// GetExposureChain builds one display chain per top-level mapping of symbol.
// Beyond the first hop only the first mapping of each symbol is followed, so
// a chain can differ from what Resolve aggregates for fan-out symbols.
func (s *Service) GetExposureChain(symbol string) [][]models.ChainLink {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	top, ok := s.store.Lookup(symbol)
	if !ok {
		return [][]models.ChainLink{{{Symbol: symbol, Factor: 1.0}}}
	}

	chains := make([][]models.ChainLink, 0, len(top))
	for _, first := range top {
		current := strings.ToUpper(first.Underlying)
		factor := first.Factor
		chain := []models.ChainLink{{Symbol: symbol, Factor: 1.0}, {Symbol: current, Factor: factor}}
		visited := map[string]bool{symbol: true, current: true}

		for {
			next, ok := s.store.Lookup(current)
			if !ok || len(next) == 0 {
				break
			}
			hop := next[0]
			nextSymbol := strings.ToUpper(hop.Underlying)
			if visited[nextSymbol] {
				break
			}
			visited[nextSymbol] = true
			factor *= hop.Factor
			chain = append(chain, models.ChainLink{Symbol: nextSymbol, Factor: factor})
			current = nextSymbol
		}

		chains = append(chains, chain)
	}
	return chains
}
