package calc

import "github.com/shopspring/decimal"

// Target is one take-profit level for a buy price.
type Target struct {
	TargetPercent    float64 `json:"target_percent"`
	SellPrice        float64 `json:"sell_price"`
	ProfitAmount     float64 `json:"profit_amount"`
	ActualMultiplier float64 `json:"actual_multiplier"`
}

var targetPercents = []int64{5, 10, 15, 20, 30}

var hundred = decimal.NewFromInt(100)

// TargetPrices computes the sell price that nets each target profit
// percentage after the sell-side fee. The fee shrinks proceeds by
// sell*fee, hence sell = buy*(1+target) / (1-fee).
func TargetPrices(buyPrice, feeRate float64) []Target {
	buy := decimal.NewFromFloat(buyPrice)
	fee := decimal.NewFromFloat(feeRate)
	one := decimal.NewFromInt(1)

	out := make([]Target, 0, len(targetPercents))
	for _, pct := range targetPercents {
		target := decimal.NewFromInt(pct).Div(hundred)
		sell := buy.Mul(one.Add(target)).Div(one.Sub(fee))
		profit := sell.Mul(one.Sub(fee)).Sub(buy)
		out = append(out, Target{
			TargetPercent:    float64(pct),
			SellPrice:        round2(sell),
			ProfitAmount:     round2(profit),
			ActualMultiplier: round4(sell.Div(buy)),
		})
	}
	return out
}

// CurrentProfit is the net profit percentage of selling at current
// price after fees. Zero when the buy price is not positive.
func CurrentProfit(buyPrice, currentPrice, feeRate float64) float64 {
	if buyPrice <= 0 {
		return 0
	}
	buy := decimal.NewFromFloat(buyPrice)
	cur := decimal.NewFromFloat(currentPrice)
	fee := decimal.NewFromFloat(feeRate)
	one := decimal.NewFromInt(1)

	net := cur.Mul(one.Sub(fee)).Sub(buy)
	return round2(net.Div(buy).Mul(hundred))
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func round4(d decimal.Decimal) float64 {
	f, _ := d.Round(4).Float64()
	return f
}
