package calc

import (
	"math"
	"testing"
)

func TestTargetPricesLevels(t *testing.T) {
	targets := TargetPrices(500.00, 0.005)
	if len(targets) != 5 {
		t.Fatalf("expected 5 target levels, got %d", len(targets))
	}

	wantPercents := []float64{5, 10, 15, 20, 30}
	for i, tgt := range targets {
		if tgt.TargetPercent != wantPercents[i] {
			t.Errorf("level %d percent: got %.0f, want %.0f", i, tgt.TargetPercent, wantPercents[i])
		}
	}

	// sell = 500 * 1.05 / 0.995
	if got, want := targets[0].SellPrice, 527.64; got != want {
		t.Errorf("5%% sell price: got %.2f, want %.2f", got, want)
	}
	if got, want := targets[1].SellPrice, 552.76; got != want {
		t.Errorf("10%% sell price: got %.2f, want %.2f", got, want)
	}
}

func TestTargetPricesNetProfitMatchesTarget(t *testing.T) {
	// Selling at the computed price after the fee must net the target
	// percentage, up to the 2dp rounding of the sell price itself.
	for _, buy := range []float64{1.00, 123.45, 500.00, 9999.99} {
		for _, tgt := range TargetPrices(buy, 0.005) {
			net := (tgt.SellPrice*(1-0.005) - buy) / buy * 100
			if math.Abs(net-tgt.TargetPercent) > 0.5 {
				t.Errorf("buy %.2f target %.0f%%: net %.3f%%", buy, tgt.TargetPercent, net)
			}
			if tgt.ActualMultiplier <= 1 {
				t.Errorf("multiplier not above 1: %.4f", tgt.ActualMultiplier)
			}
		}
	}
}

func TestCurrentProfit(t *testing.T) {
	cases := []struct {
		name    string
		buy     float64
		current float64
		want    float64
	}{
		{"gain", 500.00, 527.64, 5.0},
		{"flat_loses_fee", 500.00, 500.00, -0.5},
		{"loss", 500.00, 450.00, -10.45},
		{"zero_buy", 0, 500.00, 0},
		{"negative_buy", -1, 500.00, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CurrentProfit(tc.buy, tc.current, 0.005)
			if math.Abs(got-tc.want) > 0.011 {
				t.Errorf("got %.3f, want %.3f", got, tc.want)
			}
		})
	}
}
