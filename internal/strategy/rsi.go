package strategy

import "fmt"

// RSIThreshold buys when RSI is oversold and sells when it is overbought.
type RSIThreshold struct {
	th Thresholds
}

func (RSIThreshold) Kind() Kind { return KindRSI }

func (r RSIThreshold) Evaluate(st State) Verdict {
	rsi := st.Current.RSI
	if !rsi.Ready {
		return hold(reasonWarmup)
	}
	return outcome{
		buy:     rsi.Value < r.th.Oversold,
		sell:    rsi.Value > r.th.Overbought,
		buyWhy:  fmt.Sprintf("RSI %.1f < %.0f (oversold)", rsi.Value, r.th.Oversold),
		sellWhy: fmt.Sprintf("RSI %.1f > %.0f (overbought)", rsi.Value, r.th.Overbought),
		holdWhy: fmt.Sprintf("RSI %.1f neutral", rsi.Value),
	}.verdict(r.Kind())
}
