package allocation

import (
	"math"
	"sort"

	"github.com/aimquant/aim/pkg/formulas"
)

// DefaultRebalanceThreshold is the minimum weight change worth trading
const DefaultRebalanceThreshold = 0.02

// TradeAction is the side of a rebalance trade
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// Trade is one weight change needed to move from the current to the target portfolio
type Trade struct {
	Ticker        string      `json:"ticker"`
	Action        TradeAction `json:"action"`
	CurrentWeight float64     `json:"current_weight"`
	TargetWeight  float64     `json:"target_weight"`
	Diff          float64     `json:"diff"`
}

// PlanRebalance lists the trades whose absolute weight change reaches the
// threshold. Sells come first so that they fund the buys; ties are ordered by ticker.
// A non-positive threshold uses DefaultRebalanceThreshold.
func PlanRebalance(current, target map[string]float64, threshold float64) []Trade {
	if threshold <= 0 {
		threshold = DefaultRebalanceThreshold
	}

	tickers := make(map[string]struct{}, len(current)+len(target))
	for t := range current {
		tickers[t] = struct{}{}
	}
	for t := range target {
		tickers[t] = struct{}{}
	}

	trades := []Trade{}
	for ticker := range tickers {
		cur, tgt := current[ticker], target[ticker]
		diff := tgt - cur
		if math.Abs(diff) < threshold {
			continue
		}
		action := ActionBuy
		if diff < 0 {
			action = ActionSell
		}
		trades = append(trades, Trade{
			Ticker:        ticker,
			Action:        action,
			CurrentWeight: cur,
			TargetWeight:  tgt,
			Diff:          formulas.Round(diff, weightDecimals),
		})
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Action != trades[j].Action {
			return trades[i].Action == ActionSell
		}
		return trades[i].Ticker < trades[j].Ticker
	})
	return trades
}
