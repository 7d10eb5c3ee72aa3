package scoring

import "math"

// QualityScore maps ROE and debt ratio onto [0,1]. ROE is a fraction
// (0.15 = 15%), debt ratio is liabilities over equity as a fraction.
// Missing inputs contribute a neutral component.
func QualityScore(f Fundamentals) float64 {
	roeScore := 0.0
	if roe, ok := f.Values[FundROE]; ok {
		// 15% = 0.33, 25% = 1.0, 5% = -0.33
		roeScore = clamp((roe*100-10)/15, -1, 1)
	}

	debtScore := 0.0
	if debt, ok := f.Values[FundDebtRatio]; ok && debt >= 0 {
		// 50% = 0.5, 0% = 1.0, 150% = -0.5
		debtScore = clamp((100-debt*100)/100, -1, 1)
	}

	score := math.Tanh((roeScore*0.6 + debtScore*0.4) * 1.5)
	return (score + 1) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
