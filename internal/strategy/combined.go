package strategy

import "fmt"

// BollingerRSI requires a band breach confirmed by RSI.
type BollingerRSI struct {
	th Thresholds
}

func (BollingerRSI) Kind() Kind { return KindBollingerRSI }

func (b BollingerRSI) Evaluate(st State) Verdict {
	c := st.Current
	if !c.BBLower.Ready || !c.BBUpper.Ready || !c.RSI.Ready {
		return hold(reasonWarmup)
	}
	return outcome{
		buy:  c.Close < c.BBLower.Value && c.RSI.Value < b.th.Oversold,
		sell: c.Close > c.BBUpper.Value && c.RSI.Value > b.th.Overbought,
		buyWhy: fmt.Sprintf("close %.2f below lower band %.2f with RSI %.1f < %.0f",
			c.Close, c.BBLower.Value, c.RSI.Value, b.th.Oversold),
		sellWhy: fmt.Sprintf("close %.2f above upper band %.2f with RSI %.1f > %.0f",
			c.Close, c.BBUpper.Value, c.RSI.Value, b.th.Overbought),
		holdWhy: "no confirmed band breach",
	}.verdict(b.Kind())
}
