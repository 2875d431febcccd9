// Package domain provides core domain models and types.
package domain

import "time"

// DateLayout is the storage and display format of trading dates
const DateLayout = "2006-01-02"

// IndexTicker is the broad-market index series consumed by the regime classifier
const IndexTicker = "IBOVESPA"

// Asset is a member of the tradable universe
type Asset struct {
	Ticker  string `json:"ticker" yaml:"ticker"`
	Name    string `json:"name" yaml:"name"`
	Sector  string `json:"sector" yaml:"sector"`
	IsIndex bool   `json:"is_index" yaml:"is_index"`
}

// PricePoint is one daily bar; append-only per (ticker, date)
type PricePoint struct {
	Date   time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// MacroIndicator names a macro series
type MacroIndicator string

const (
	IndicatorSELIC  MacroIndicator = "SELIC"
	IndicatorCDI    MacroIndicator = "CDI"
	IndicatorIPCA   MacroIndicator = "IPCA"
	IndicatorUSDBRL MacroIndicator = "USD_BRL"
)

// MacroPoint is one observation of a macro indicator
type MacroPoint struct {
	Date      time.Time      `json:"date"`
	Indicator MacroIndicator `json:"indicator"`
	Value     float64        `json:"value"`
}

// Fundamentals is the latest-known fundamental snapshot of a ticker.
// Nil fields are unknown.
type Fundamentals struct {
	ReferenceDate time.Time `json:"reference_date"`
	Ticker        string    `json:"ticker"`
	PE            *float64  `json:"pe,omitempty"`
	PB            *float64  `json:"pb,omitempty"`
	DividendYield *float64  `json:"dividend_yield,omitempty"`
	ROE           *float64  `json:"roe,omitempty"`
	NetMargin     *float64  `json:"net_margin,omitempty"`
	ROIC          *float64  `json:"roic,omitempty"`
}

// FeatureSet holds the technical features of one ticker on one date.
// Nil fields could not be computed from the available history.
type FeatureSet struct {
	Date            time.Time `json:"date"`
	Ticker          string    `json:"ticker"`
	Momentum3M      *float64  `json:"momentum_3m,omitempty"`
	Momentum6M      *float64  `json:"momentum_6m,omitempty"`
	Momentum12M     *float64  `json:"momentum_12m,omitempty"`
	Vol21D          *float64  `json:"vol_21d,omitempty"`
	Vol63D          *float64  `json:"vol_63d,omitempty"`
	Vol126D         *float64  `json:"vol_126d,omitempty"`
	AvgVolume       *float64  `json:"avg_volume,omitempty"`
	AvgDollarVolume *float64  `json:"avg_dollar_volume,omitempty"`
	LiquidityScore  *float64  `json:"liquidity_score,omitempty"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// TruncateDate strips the time of day, keeping the calendar date in UTC
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
