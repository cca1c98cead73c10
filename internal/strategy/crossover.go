package strategy

import "fmt"

// MACrossover implements a moving average crossover with an RSI filter.
//
// Buy signal: short MA crosses above long MA (golden cross) while RSI is
// below overbought.
// Sell signal: short MA crosses below long MA (death cross) while RSI is
// above oversold.
type MACrossover struct {
	th Thresholds
}

func (MACrossover) Kind() Kind { return KindMACrossover }

func (m MACrossover) Evaluate(st State) Verdict {
	c, p := st.Current, st.Previous
	if !st.HasPrevious || !c.ShortMA.Ready || !c.LongMA.Ready || !p.ShortMA.Ready || !p.LongMA.Ready || !c.RSI.Ready {
		return hold(reasonWarmup)
	}

	golden := p.ShortMA.Value <= p.LongMA.Value && c.ShortMA.Value > c.LongMA.Value
	death := p.ShortMA.Value >= p.LongMA.Value && c.ShortMA.Value < c.LongMA.Value

	o := outcome{
		buy:     golden && c.RSI.Value < m.th.Overbought,
		sell:    death && c.RSI.Value > m.th.Oversold,
		buyWhy:  fmt.Sprintf("MA golden cross (short %.2f > long %.2f)", c.ShortMA.Value, c.LongMA.Value),
		sellWhy: fmt.Sprintf("MA death cross (short %.2f < long %.2f)", c.ShortMA.Value, c.LongMA.Value),
		holdWhy: "no crossover",
	}
	switch {
	case golden && !o.buy:
		o.holdWhy = fmt.Sprintf("golden cross filtered by RSI %.1f >= %.0f", c.RSI.Value, m.th.Overbought)
	case death && !o.sell:
		o.holdWhy = fmt.Sprintf("death cross filtered by RSI %.1f <= %.0f", c.RSI.Value, m.th.Oversold)
	}
	return o.verdict(m.Kind())
}
