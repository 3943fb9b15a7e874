package protocol

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// ADCMax is the largest 12-bit ADC code.
const ADCMax = 4095

// BoundaryTableSize is the number of entries in the bin boundary table.
const BoundaryTableSize = ADCMax + 1

// Calibration anchors for the bin boundary table: ADC code and the particle
// diameter in microns at that code. Intermediate codes are interpolated
// linearly, so the table is monotonic non-decreasing by construction.
var (
	boundaryAnchorADC = []float64{
		0, 38, 91, 196, 305, 432, 627, 846, 1058,
		1266, 1516, 1790, 2186, 2588, 3030, 3484, 4095,
	}
	boundaryAnchorMicron = []float64{
		0.38, 0.54, 0.78, 1.05, 1.34, 1.59, 2.07, 3.00, 4.00,
		5.00, 6.50, 8.00, 10.0, 12.0, 14.0, 16.0, 17.0,
	}
)

var boundaryTable = buildBoundaryTable()

func buildBoundaryTable() [BoundaryTableSize]float64 {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(boundaryAnchorADC, boundaryAnchorMicron); err != nil {
		panic(fmt.Sprintf("protocol: bin boundary anchors: %v", err))
	}

	var t [BoundaryTableSize]float64
	for code := range t {
		t[code] = pl.Predict(float64(code))
	}
	return t
}

// clampADC saturates an ADC code to [0, ADCMax].
func clampADC(adc int) int {
	if adc < 0 {
		return 0
	}
	if adc > ADCMax {
		return ADCMax
	}
	return adc
}

// LookupBoundary returns the bin boundary diameter in microns for an ADC
// code. Codes outside [0, 4095] saturate rather than fail.
func LookupBoundary(adc int) float64 {
	return boundaryTable[clampADC(adc)]
}

// NearestADC returns the ADC code whose boundary diameter is closest to
// micron. Ties resolve to the lowest code.
func NearestADC(micron float64) int {
	best := 0
	bestDiff := math.Abs(boundaryTable[0] - micron)
	for code := 1; code < BoundaryTableSize; code++ {
		if d := math.Abs(boundaryTable[code] - micron); d < bestDiff {
			best, bestDiff = code, d
		}
	}
	return best
}

// BoundaryTable returns a copy of the full lookup table.
func BoundaryTable() [BoundaryTableSize]float64 {
	return boundaryTable
}
