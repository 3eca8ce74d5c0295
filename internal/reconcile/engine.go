package reconcile

import (
	"math"

	"github.com/charpente-erp/charpente/internal/actuals"
	"github.com/charpente-erp/charpente/internal/estimation"
)

// Classification bands, percent. A dimension inside its band is ACCEPTABLE,
// outside it is ATTENTION. Margin is graded separately: at or above
// marginFloor is ACCEPTABLE, below is CRITICAL.
const (
	bandAmount     = 5.0
	bandDuration   = 10.0
	bandLabor      = 10.0
	bandPurchasing = 15.0
	bandOverhead   = 5.0
	marginFloor    = -10.0
)

// Scan thresholds, percent. All comparisons are strict.
const (
	scanAmount   = 20.0
	scanDuration = 25.0
	scanMargin   = -30.0

	criticalMargin = -50.0
	criticalAmount = 50.0
	highMargin     = -30.0
	highAmount     = 30.0
)

// Deviation computes a percentage deviation with exact zero tie-breaks: both
// zero yields 0, estimated zero with a nonzero actual yields 100.
func Deviation(estimated, actual float64) float64 {
	if estimated == 0 {
		if actual == 0 {
			return 0
		}
		return 100
	}
	return (actual - estimated) / estimated * 100
}

// ComputeDeviations derives the six deviations of a comparison.
func ComputeDeviations(est estimation.Estimation, actual actuals.Figures) DeviationSet {
	return DeviationSet{
		Amount:     Deviation(est.TotalAmount, actual.TotalAmount),
		Duration:   Deviation(est.TotalDuration, actual.TotalDuration),
		Labor:      Deviation(est.LaborCost, actual.LaborCost),
		Purchasing: Deviation(est.PurchasingCost, actual.PurchasingCost),
		Overhead:   Deviation(est.OverheadCost, actual.OverheadCost),
		Margin:     Deviation(est.Margin, actual.Margin),
	}
}

// ClassifyDeviations grades each dimension against its band.
func ClassifyDeviations(d DeviationSet) Classification {
	return Classification{
		Amount:     bandStatus(d.Amount, bandAmount),
		Duration:   bandStatus(d.Duration, bandDuration),
		Labor:      bandStatus(d.Labor, bandLabor),
		Purchasing: bandStatus(d.Purchasing, bandPurchasing),
		Overhead:   bandStatus(d.Overhead, bandOverhead),
		Margin:     marginStatus(d.Margin),
	}
}

// OverallStatus reduces a classification to its worst dimension.
func OverallStatus(c Classification) DeviationStatus {
	worst := StatusAcceptable
	for _, status := range []DeviationStatus{c.Amount, c.Duration, c.Labor, c.Purchasing, c.Overhead, c.Margin} {
		switch status {
		case StatusCritical:
			return StatusCritical
		case StatusAttention:
			worst = StatusAttention
		}
	}
	return worst
}

// ScanMatch reports whether a deviation set trips the 7-day scan rule.
func ScanMatch(d DeviationSet) bool {
	return math.Abs(d.Amount) > scanAmount ||
		math.Abs(d.Duration) > scanDuration ||
		d.Margin < scanMargin
}

// ScanSeverity grades a matched deviation set.
func ScanSeverity(d DeviationSet) Severity {
	switch {
	case d.Margin < criticalMargin || math.Abs(d.Amount) > criticalAmount:
		return SeverityCritical
	case d.Margin < highMargin || math.Abs(d.Amount) > highAmount:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func bandStatus(deviation, band float64) DeviationStatus {
	if math.Abs(deviation) <= band {
		return StatusAcceptable
	}
	return StatusAttention
}

func marginStatus(deviation float64) DeviationStatus {
	if deviation >= marginFloor {
		return StatusAcceptable
	}
	return StatusCritical
}
