// Package indicator computes the technical indicator snapshot the scalping
// strategy decides on. It is a pure mapping from an ordered close series to
// named values; no I/O.
package indicator

import talib "github.com/markcheno/go-talib"

type Config struct {
	EMAShort   int `yaml:"ema_short"`
	EMALong    int `yaml:"ema_long"`
	RSIPeriod  int `yaml:"rsi_period"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
}

func DefaultConfig() Config {
	return Config{
		EMAShort:   9,
		EMALong:    21,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// Snapshot is the indicator set for the most recent close.
type Snapshot struct {
	EMAShort   float64 `json:"ema_short"`
	EMALong    float64 `json:"ema_long"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
}

const bbPeriod = 20

// minCloses is the shortest series every indicator in the snapshot can be
// computed from. The MACD signal line is the slowest: it needs the slow EMA
// warmed up and then its own signal period on top.
func minCloses(cfg Config) int {
	n := cfg.EMALong
	if m := cfg.MACDSlow + cfg.MACDSignal; m > n {
		n = m
	}
	if bbPeriod+1 > n {
		n = bbPeriod + 1
	}
	return n
}

// Compute returns the snapshot for the last element of closes. The second
// return is false when the series is too short for the slowest indicator;
// callers must then hold off trading.
func Compute(closes []float64, cfg Config) (Snapshot, bool) {
	if len(closes) < minCloses(cfg) {
		return Snapshot{}, false
	}

	last := len(closes) - 1

	emaShort := talib.Ema(closes, cfg.EMAShort)
	emaLong := talib.Ema(closes, cfg.EMALong)
	rsi := talib.Rsi(closes, cfg.RSIPeriod)
	macd, macdSignal, macdHist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	bbUpper, bbMiddle, bbLower := talib.BBands(closes, bbPeriod, 2, 2, 0)

	return Snapshot{
		EMAShort:   emaShort[last],
		EMALong:    emaLong[last],
		RSI:        rsi[last],
		MACD:       macd[last],
		MACDSignal: macdSignal[last],
		MACDHist:   macdHist[last],
		BBUpper:    bbUpper[last],
		BBMiddle:   bbMiddle[last],
		BBLower:    bbLower[last],
	}, true
}
