// Package export writes an analysed indicator frame to disk as CSV, JSON or
// Parquet, one row per bar.
package export

import (
	"fmt"
	"strings"

	"signaldesk/internal/indicator"
	"signaldesk/internal/strategy"
)

// Row is one bar of an exported frame. Undefined indicator values are nil.
type Row struct {
	TS      int64    `json:"ts" parquet:"ts"` // bar start, unix milliseconds
	Symbol  string   `json:"symbol" parquet:"symbol,dict"`
	Open    float64  `json:"open" parquet:"open"`
	High    float64  `json:"high" parquet:"high"`
	Low     float64  `json:"low" parquet:"low"`
	Close   float64  `json:"close" parquet:"close"`
	Volume  float64  `json:"volume" parquet:"volume"`
	BBMid   *float64 `json:"bb_mid,omitempty" parquet:"bb_mid,optional"`
	BBUpper *float64 `json:"bb_upper,omitempty" parquet:"bb_upper,optional"`
	BBLower *float64 `json:"bb_lower,omitempty" parquet:"bb_lower,optional"`
	ShortMA *float64 `json:"short_ma,omitempty" parquet:"short_ma,optional"`
	LongMA  *float64 `json:"long_ma,omitempty" parquet:"long_ma,optional"`
	EMA     *float64 `json:"ema,omitempty" parquet:"ema,optional"`
	RSI     *float64 `json:"rsi,omitempty" parquet:"rsi,optional"`
	Signal  string   `json:"signal,omitempty" parquet:"signal,optional,dict"`
}

// Saver writes rows to path.
type Saver interface {
	Save(rows []Row, path string) error
	Extension() string
}

// New returns the saver for format (csv, json, parquet).
func New(format string) (Saver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}, nil
	case "json":
		return JSONSaver{}, nil
	case "parquet":
		return ParquetSaver{}, nil
	default:
		return nil, fmt.Errorf("export: unsupported format %q (use csv, json or parquet)", format)
	}
}

func opt(p indicator.Point) *float64 {
	if !p.Ready {
		return nil
	}
	v := p.Value
	return &v
}

// FromFrame flattens f into rows. Each decision's signal is written on the
// bar it belongs to.
func FromFrame(f *indicator.Frame, decisions []strategy.Decision) []Row {
	signals := make(map[int]strategy.Signal, len(decisions))
	for _, d := range decisions {
		signals[d.Index] = d.Signal
	}

	rows := make([]Row, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		r, err := f.Row(i)
		if err != nil {
			break
		}
		b := f.Bars[i]
		rows = append(rows, Row{
			TS:      b.TS.UnixMilli(),
			Symbol:  f.Symbol,
			Open:    b.Open,
			High:    b.High,
			Low:     b.Low,
			Close:   b.Close,
			Volume:  b.Volume,
			BBMid:   opt(r.BBMid),
			BBUpper: opt(r.BBUpper),
			BBLower: opt(r.BBLower),
			ShortMA: opt(r.ShortMA),
			LongMA:  opt(r.LongMA),
			EMA:     opt(r.EMA),
			RSI:     opt(r.RSI),
			Signal:  string(signals[i]),
		})
	}
	return rows
}
