package indicator

// EMA returns the exponential moving average series of closes using the
// span convention alpha = 2/(span+1), seeded with the first close.
func EMA(closes []float64, span int) ([]float64, error) {
	if span <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(closes) == 0 {
		return nil, insufficient("ema", 1, 0)
	}
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(closes))
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = alpha*closes[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes the latest MACD line and signal line. It requires at least
// long+signal closes so the slow average has settled.
func MACD(closes []float64, short, long, signal int) (MACDValue, error) {
	if short <= 0 || long <= 0 || signal <= 0 || short >= long {
		return MACDValue{}, ErrInvalidPeriod
	}
	if len(closes) < long+signal {
		return MACDValue{}, insufficient("macd", long+signal, len(closes))
	}
	fast, _ := EMA(closes, short)
	slow, _ := EMA(closes, long)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	sig, _ := EMA(line, signal)
	last := len(closes) - 1
	return MACDValue{
		MACD:      line[last],
		Signal:    sig[last],
		Histogram: line[last] - sig[last],
	}, nil
}
