package strategy

import "fmt"

// BollingerTouch buys when the close is below the lower band and sells when
// it is above the upper band.
type BollingerTouch struct{}

func (BollingerTouch) Kind() Kind { return KindBollingerTouch }

func (b BollingerTouch) Evaluate(st State) Verdict {
	c := st.Current
	if !c.BBLower.Ready || !c.BBUpper.Ready {
		return hold(reasonWarmup)
	}
	return outcome{
		buy:     c.Close < c.BBLower.Value,
		sell:    c.Close > c.BBUpper.Value,
		buyWhy:  fmt.Sprintf("close %.2f below lower band %.2f", c.Close, c.BBLower.Value),
		sellWhy: fmt.Sprintf("close %.2f above upper band %.2f", c.Close, c.BBUpper.Value),
		holdWhy: "close inside bands",
	}.verdict(b.Kind())
}

// BollingerCross fires only on the bar where the close crosses out of the
// bands, so a close that stays outside produces a single signal.
type BollingerCross struct{}

func (BollingerCross) Kind() Kind { return KindBollingerCross }

func (b BollingerCross) Evaluate(st State) Verdict {
	c, p := st.Current, st.Previous
	if !st.HasPrevious || !c.BBLower.Ready || !c.BBUpper.Ready || !p.BBLower.Ready || !p.BBUpper.Ready {
		return hold(reasonWarmup)
	}
	return outcome{
		buy:     p.Close >= p.BBLower.Value && c.Close < c.BBLower.Value,
		sell:    p.Close <= p.BBUpper.Value && c.Close > c.BBUpper.Value,
		buyWhy:  fmt.Sprintf("close %.2f crossed below lower band %.2f", c.Close, c.BBLower.Value),
		sellWhy: fmt.Sprintf("close %.2f crossed above upper band %.2f", c.Close, c.BBUpper.Value),
		holdWhy: "no band cross",
	}.verdict(b.Kind())
}
