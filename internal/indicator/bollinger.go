package indicator

import "strconv"

// Default Bollinger parameters.
const (
	DefaultBollingerWindow = 20
	DefaultBollingerK      = 2.0
)

// Bollinger tracks Bollinger Bands: mid = SMA(w), upper/lower = mid ± k·std(w).
// Value returns the mid band.
type Bollinger struct {
	k   float64
	sma *SMA
	std *StdDev
}

// NewBollinger creates Bollinger Bands over window w with width k.
func NewBollinger(w int, k float64) *Bollinger {
	return &Bollinger{k: k, sma: NewSMA(w), std: NewStdDev(w)}
}

func (b *Bollinger) Name() string {
	return "BB_" + strconv.Itoa(b.sma.period) + "_" + strconv.FormatFloat(b.k, 'f', -1, 64)
}

func (b *Bollinger) Update(price float64) {
	b.sma.Update(price)
	b.std.Update(price)
}

func (b *Bollinger) Value() float64 { return b.sma.Value() }
func (b *Bollinger) Ready() bool    { return b.sma.Ready() && b.std.Ready() }

// Upper returns mid + k·std.
func (b *Bollinger) Upper() float64 { return b.sma.Value() + b.k*b.std.Value() }

// Lower returns mid - k·std.
func (b *Bollinger) Lower() float64 { return b.sma.Value() - b.k*b.std.Value() }

// Reset clears the state for reuse.
func (b *Bollinger) Reset() {
	b.sma.Reset()
	b.std.Reset()
}

// Bands holds the three Bollinger series.
type Bands struct {
	Mid   Series
	Upper Series
	Lower Series
}

// BollingerBands computes the band series for closes.
// Mid follows SMA readiness; upper and lower need the deviation as well.
func BollingerBands(closes []float64, w int, k float64) Bands {
	b := NewBollinger(w, k)
	out := Bands{
		Mid:   make(Series, len(closes)),
		Upper: make(Series, len(closes)),
		Lower: make(Series, len(closes)),
	}
	for i, c := range closes {
		b.Update(c)
		if b.sma.Ready() {
			out.Mid[i] = Point{Value: b.sma.Value(), Ready: true}
		}
		if b.Ready() {
			out.Upper[i] = Point{Value: b.Upper(), Ready: true}
			out.Lower[i] = Point{Value: b.Lower(), Ready: true}
		}
	}
	return out
}
