package scoring

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// ErrFeatureMismatch means the classifier was trained on a different
// feature set than the one this build produces.
var ErrFeatureMismatch = errors.New("classifier feature names do not match")

// Fundamental scores fed to the classifier, all lagged by the publication
// delay before use.
const (
	FundROE             = "fund_roe"
	FundProfitMargin    = "fund_profit_margin"
	FundOperatingMargin = "fund_operating_margin"
	FundPERatio         = "fund_pe_ratio"
	FundPriceToBook     = "fund_price_to_book"
	FundEarningsGrowth  = "fund_earnings_growth"
	FundRevenueGrowth   = "fund_revenue_growth"
	FundDebtRatio       = "fund_debt_ratio"
)

var fundamentalNames = []string{
	FundROE, FundProfitMargin, FundOperatingMargin, FundPERatio,
	FundPriceToBook, FundEarningsGrowth, FundRevenueGrowth, FundDebtRatio,
}

// Sectors are the provider's sector labels. Anything else maps to "other".
var Sectors = []string{
	"TECHNOLOGY",
	"LIFE SCIENCES",
	"MANUFACTURING",
	"TRADE & SERVICES",
	"ENERGY & TRANSPORTATION",
	"FINANCE",
	"REAL ESTATE & CONSTRUCTION",
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func sectorColumn(sector string) string {
	s := strings.ToUpper(strings.TrimSpace(sector))
	for _, known := range Sectors {
		if s == known {
			return "sector_" + strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "_"), "_")
		}
	}
	return "sector_other"
}

func strategyColumn(name string) string {
	return "strategy_" + name
}

// Fundamentals are the lagged fundamental values of one entity. Missing
// values are absent from Values.
type Fundamentals struct {
	Sector string
	Values map[string]float64
}

// Candidate is one current buy signal with its lagged fundamentals
type Candidate struct {
	Event        contracts.SignalEvent
	Symbol       string
	Fundamentals Fundamentals
}

// VectorBuilder produces classifier rows in a fixed column order
type VectorBuilder struct {
	order []string
	index map[string]int
}

// ExpectedFeatures lists every column this build can produce for the
// given strategies, sorted.
func ExpectedFeatures(strategies []string) []string {
	names := append([]string{}, fundamentalNames...)
	for _, s := range Sectors {
		names = append(names, sectorColumn(s))
	}
	names = append(names, "sector_other")
	for _, s := range strategies {
		names = append(names, strategyColumn(s))
	}
	sort.Strings(names)
	return names
}

// NewVectorBuilder checks the classifier's columns against the columns
// produced here and fails with ErrFeatureMismatch when they differ.
func NewVectorBuilder(classifierNames, strategies []string) (*VectorBuilder, error) {
	expected := make(map[string]bool)
	for _, n := range ExpectedFeatures(strategies) {
		expected[n] = true
	}

	var missing, unknown []string
	index := make(map[string]int, len(classifierNames))
	for i, n := range classifierNames {
		if !expected[n] {
			unknown = append(unknown, n)
		}
		index[n] = i
	}
	for n := range expected {
		if _, ok := index[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: model lacks %v, model has unknown %v", ErrFeatureMismatch, missing, unknown)
	}

	order := make([]string, len(classifierNames))
	copy(order, classifierNames)
	return &VectorBuilder{order: order, index: index}, nil
}

// Row builds one input row. Missing fundamentals are imputed as zero.
func (b *VectorBuilder) Row(c Candidate) []float64 {
	row := make([]float64, len(b.order))
	for name, v := range c.Fundamentals.Values {
		if i, ok := b.index[name]; ok {
			row[i] = v
		}
	}
	if i, ok := b.index[sectorColumn(c.Fundamentals.Sector)]; ok {
		row[i] = 1
	}
	if i, ok := b.index[strategyColumn(c.Event.Strategy)]; ok {
		row[i] = 1
	}
	return row
}
