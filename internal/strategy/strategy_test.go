package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"multibot/internal/indicator"
	"multibot/internal/strategy"
)

func snapshot(emaShort, emaLong, macd, macdSignal, rsi float64) indicator.Snapshot {
	return indicator.Snapshot{
		EMAShort:   emaShort,
		EMALong:    emaLong,
		MACD:       macd,
		MACDSignal: macdSignal,
		RSI:        rsi,
	}
}

func TestDetermineTrend(t *testing.T) {
	cases := []struct {
		name string
		ind  indicator.Snapshot
		want strategy.Trend
	}{
		{"all bullish", snapshot(101, 100, 1, 0, 60), strategy.TrendUp},
		{"two bullish one bearish rsi", snapshot(101, 100, 1, 0, 40), strategy.TrendUp},
		{"all bearish", snapshot(99, 100, -1, 0, 40), strategy.TrendDown},
		{"two bearish one bullish rsi", snapshot(99, 100, -1, 0, 60), strategy.TrendDown},
		{"mixed ema up macd down", snapshot(101, 100, -1, 0, 60), strategy.TrendNeutral},
		{"mixed ema down macd up", snapshot(99, 100, 1, 0, 40), strategy.TrendNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, strategy.DetermineTrend(tc.ind))
		})
	}
}

func TestEvaluateUptrendSignals(t *testing.T) {
	s := strategy.NewScalping(indicator.DefaultConfig())

	up := snapshot(101, 100, 1, 0, 30)
	up.BBLower = 95
	up.BBUpper = 105

	sig := s.Evaluate(94, up)
	assert.Equal(t, strategy.ActionBuy, sig.Action)
	assert.Equal(t, 0.8, sig.Confidence)
	assert.Equal(t, strategy.TrendUp, s.Trend())

	up.RSI = 75
	sig = s.Evaluate(106, up)
	assert.Equal(t, strategy.ActionSell, sig.Action)
	assert.Equal(t, 0.7, sig.Confidence)
}

func TestEvaluateDowntrendSignals(t *testing.T) {
	s := strategy.NewScalping(indicator.DefaultConfig())

	down := snapshot(99, 100, -1, 0, 70)
	down.BBLower = 95
	down.BBUpper = 105

	sig := s.Evaluate(106, down)
	assert.Equal(t, strategy.ActionSell, sig.Action)
	assert.Equal(t, 0.75, sig.Confidence)

	down.RSI = 25
	sig = s.Evaluate(94, down)
	assert.Equal(t, strategy.ActionBuy, sig.Action)
	assert.Equal(t, 0.6, sig.Confidence)
}

func TestEvaluateRangeSignals(t *testing.T) {
	s := strategy.NewScalping(indicator.DefaultConfig())

	flat := snapshot(101, 100, -1, 0, 25)
	flat.BBLower = 95
	flat.BBUpper = 105

	sig := s.Evaluate(94, flat)
	assert.Equal(t, strategy.ActionBuy, sig.Action)
	assert.Equal(t, 0.7, sig.Confidence)

	flat.RSI = 75
	sig = s.Evaluate(106, flat)
	assert.Equal(t, strategy.ActionSell, sig.Action)
	assert.Equal(t, 0.7, sig.Confidence)
}

func TestEvaluateHoldHasZeroConfidence(t *testing.T) {
	s := strategy.NewScalping(indicator.DefaultConfig())

	up := snapshot(101, 100, 1, 0, 55)
	up.BBLower = 95
	up.BBUpper = 105

	sig := s.Evaluate(100, up)
	assert.Equal(t, strategy.ActionHold, sig.Action)
	assert.Zero(t, sig.Confidence)
}

func TestObserveTruncatesWindow(t *testing.T) {
	s := strategy.NewScalping(indicator.DefaultConfig())

	for i := 1; i <= 101; i++ {
		s.Observe(float64(i))
	}

	closes := s.Closes()
	assert.Len(t, closes, 50)
	assert.Equal(t, 52.0, closes[0])
	assert.Equal(t, 101.0, closes[len(closes)-1])
}

func TestClosesReturnsCopy(t *testing.T) {
	s := strategy.NewScalping(indicator.DefaultConfig())
	s.Observe(100)

	closes := s.Closes()
	closes[0] = -1
	assert.Equal(t, 100.0, s.Closes()[0])
}
