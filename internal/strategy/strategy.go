// Package strategy holds the scalping decision logic: a trend state machine
// over an indicator snapshot plus band/oscillator signal generation. It is
// pure; the owning bot performs all I/O.
package strategy

import (
	"multibot/internal/indicator"
)

type Trend string

const (
	TrendUp      Trend = "UPTREND"
	TrendDown    Trend = "DOWNTREND"
	TrendNeutral Trend = "NEUTRAL"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is one trading decision with its confidence in [0,1].
type Signal struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Price      float64 `json:"price"`
}

const (
	// windowCap bounds the retained close history; on overflow the window
	// is truncated to the most recent windowKeep closes.
	windowCap  = 100
	windowKeep = 50
)

// Scalping tracks per-bot trend state and a bounded close window. Not safe
// for concurrent use; each bot owns exactly one instance and drives it from
// its own loop.
type Scalping struct {
	cfg    indicator.Config
	trend  Trend
	closes []float64
}

func NewScalping(cfg indicator.Config) *Scalping {
	return &Scalping{
		cfg:    cfg,
		trend:  TrendNeutral,
		closes: make([]float64, 0, windowCap),
	}
}

// Observe appends a closed-candle price to the window, discarding the oldest
// half once the capacity cap is exceeded.
func (s *Scalping) Observe(close float64) {
	s.closes = append(s.closes, close)
	if len(s.closes) > windowCap {
		kept := s.closes[len(s.closes)-windowKeep:]
		s.closes = append(s.closes[:0], kept...)
	}
}

// Closes returns the current window, oldest first.
func (s *Scalping) Closes() []float64 {
	out := make([]float64, len(s.closes))
	copy(out, s.closes)
	return out
}

func (s *Scalping) Trend() Trend { return s.trend }

// DetermineTrend classifies the market from one indicator snapshot:
// score = sign(EMAshort-EMAlong) + sign(MACD-signal) + 0.5*sign(RSI-50),
// UPTREND at score >= 1.5, DOWNTREND at score <= -1.5.
func DetermineTrend(ind indicator.Snapshot) Trend {
	score := 0.0
	if ind.EMAShort > ind.EMALong {
		score++
	} else {
		score--
	}
	if ind.MACD > ind.MACDSignal {
		score++
	} else {
		score--
	}
	if ind.RSI > 50 {
		score += 0.5
	} else {
		score -= 0.5
	}

	switch {
	case score >= 1.5:
		return TrendUp
	case score <= -1.5:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// Evaluate recomputes the trend and produces a trend-conditioned signal for
// the current price. HOLD carries zero confidence.
func (s *Scalping) Evaluate(price float64, ind indicator.Snapshot) Signal {
	s.trend = DetermineTrend(ind)

	signal := Signal{Action: ActionHold, Price: price}

	switch s.trend {
	case TrendUp:
		if price <= ind.BBLower && ind.RSI < 35 {
			signal = Signal{Action: ActionBuy, Confidence: 0.8, Reason: "Uptrend buy dip", Price: price}
		} else if price >= ind.BBUpper && ind.RSI > 70 {
			signal = Signal{Action: ActionSell, Confidence: 0.7, Reason: "Uptrend take profit", Price: price}
		}
	case TrendDown:
		if price >= ind.BBUpper && ind.RSI > 65 {
			signal = Signal{Action: ActionSell, Confidence: 0.75, Reason: "Downtrend sell rally", Price: price}
		} else if price <= ind.BBLower && ind.RSI < 30 {
			signal = Signal{Action: ActionBuy, Confidence: 0.6, Reason: "Downtrend cautious buy", Price: price}
		}
	default:
		if price <= ind.BBLower && ind.RSI < 30 {
			signal = Signal{Action: ActionBuy, Confidence: 0.7, Reason: "Range buy", Price: price}
		} else if price >= ind.BBUpper && ind.RSI > 70 {
			signal = Signal{Action: ActionSell, Confidence: 0.7, Reason: "Range sell", Price: price}
		}
	}

	return signal
}
