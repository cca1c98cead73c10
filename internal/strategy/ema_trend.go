package strategy

import "fmt"

// EMATrend buys when the close is above the EMA and sells when below.
type EMATrend struct{}

func (EMATrend) Kind() Kind { return KindEMATrend }

func (e EMATrend) Evaluate(st State) Verdict {
	c := st.Current
	if !c.EMA.Ready {
		return hold(reasonWarmup)
	}
	return outcome{
		buy:     c.Close > c.EMA.Value,
		sell:    c.Close < c.EMA.Value,
		buyWhy:  fmt.Sprintf("close %.2f above EMA %.2f", c.Close, c.EMA.Value),
		sellWhy: fmt.Sprintf("close %.2f below EMA %.2f", c.Close, c.EMA.Value),
		holdWhy: "close on EMA",
	}.verdict(e.Kind())
}
