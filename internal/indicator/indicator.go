// Package indicator provides technical indicator calculations over close prices.
//
// Streaming indicators implement the Indicator interface and consume one close
// at a time. The batch helpers (SMASeries, RollingStd, BollingerBands,
// EMASeries, RSISeries) feed a whole close vector through them and return a
// Series aligned one-to-one with the input. Compute builds the full augmented Frame used by the strategies.
package indicator

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_9").
	Name() string

	// Update feeds the next close price and recalculates.
	Update(price float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears all state so the indicator can be reused.
	Reset()
}

// Point is one element of an indicator series. A point that is not Ready has
// insufficient history and carries Value 0.
type Point struct {
	Value float64 `json:"value"`
	Ready bool    `json:"ready"`
}

// Series is an indicator output aligned with the price series it came from.
type Series []Point

// At returns the value at index i and whether it is defined.
// Out-of-range indices are reported as undefined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	return s[i].Value, s[i].Ready
}

// Values returns the raw values; undefined points are 0.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// ReadyCount returns how many points are defined.
func (s Series) ReadyCount() int {
	n := 0
	for _, p := range s {
		if p.Ready {
			n++
		}
	}
	return n
}

// run feeds closes through ind and captures its state after every update.
func run(ind Indicator, closes []float64) Series {
	out := make(Series, len(closes))
	for i, c := range closes {
		ind.Update(c)
		if ind.Ready() {
			out[i] = Point{Value: ind.Value(), Ready: true}
		}
	}
	return out
}
