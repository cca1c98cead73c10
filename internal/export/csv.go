package export

import (
	"encoding/csv"
	"os"
	"strconv"
)

// CSVSaver writes a header row followed by one line per bar. Undefined
// indicator values are empty cells.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

var csvHeader = []string{
	"ts", "symbol", "open", "high", "low", "close", "volume",
	"bb_mid", "bb_upper", "bb_lower", "short_ma", "long_ma", "ema", "rsi", "signal",
}

func (CSVSaver) Save(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			strconv.FormatInt(r.TS, 10),
			r.Symbol,
			floatStr(r.Open),
			floatStr(r.High),
			floatStr(r.Low),
			floatStr(r.Close),
			floatStr(r.Volume),
			optStr(r.BBMid),
			optStr(r.BBUpper),
			optStr(r.BBLower),
			optStr(r.ShortMA),
			optStr(r.LongMA),
			optStr(r.EMA),
			optStr(r.RSI),
			r.Signal,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func optStr(p *float64) string {
	if p == nil {
		return ""
	}
	return floatStr(*p)
}
