// Package indicator turns daily candles into the boolean entry/exit
// signals the strategy aggregator consumes, plus a numeric snapshot for
// reports.
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"aurum/internal/market"
	"aurum/internal/strategy"
)

// Signal names shared with the aggregator config.
const (
	SignalKDJGoldenCross  = "kdj_golden_cross"
	SignalMACDGoldenCross = "macd_golden_cross"
	SignalRSIOversold     = "rsi_oversold"
	SignalMACDDeadCross   = "macd_dead_cross"
)

// MinBars covers the slow MACD EMA plus signal warmup.
const MinBars = 40

// Config 技术指标参数，零值无效,使用 DefaultConfig。
type Config struct {
	KDJPeriod   int     `mapstructure:"kdj_period"`
	KDJSmooth   int     `mapstructure:"kdj_smooth"`
	MACDFast    int     `mapstructure:"macd_fast"`
	MACDSlow    int     `mapstructure:"macd_slow"`
	MACDSignal  int     `mapstructure:"macd_signal"`
	RSIPeriod   int     `mapstructure:"rsi_period"`
	RSIOversold float64 `mapstructure:"rsi_oversold"`
}

func DefaultConfig() Config {
	return Config{
		KDJPeriod:   9,
		KDJSmooth:   3,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		RSIPeriod:   6,
		RSIOversold: 20,
	}
}

// Snapshot carries the latest indicator values alongside the fired signals.
type Snapshot struct {
	K    float64 `json:"k"`
	D    float64 `json:"d"`
	J    float64 `json:"j"`
	DIF  float64 `json:"dif"`
	DEA  float64 `json:"dea"`
	Hist float64 `json:"hist"`
	RSI  float64 `json:"rsi"`

	Signals strategy.Signals `json:"signals"`
}

// Compute evaluates KDJ, MACD and RSI on candles (oldest first).
func Compute(candles []market.Candle, cfg Config) (Snapshot, error) {
	if len(candles) < MinBars {
		return Snapshot{}, fmt.Errorf("indicator: need at least %d candles, got %d", MinBars, len(candles))
	}
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	closes := market.Closes(candles)

	k, d := talib.Stoch(highs, lows, closes, cfg.KDJPeriod, cfg.KDJSmooth, talib.SMA, cfg.KDJSmooth, talib.SMA)
	dif, dea, hist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	rsi := talib.Rsi(closes, cfg.RSIPeriod)

	last := len(closes) - 1
	prev := last - 1

	snap := Snapshot{
		K:    k[last],
		D:    d[last],
		J:    3*k[last] - 2*d[last],
		DIF:  dif[last],
		DEA:  dea[last],
		Hist: hist[last],
		RSI:  rsi[last],
	}
	for _, v := range []float64{snap.K, snap.D, snap.DIF, snap.DEA, snap.RSI} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Snapshot{}, fmt.Errorf("indicator: series not warmed up")
		}
	}

	snap.Signals = strategy.Signals{
		SignalKDJGoldenCross:  crossAbove(k[prev], d[prev], k[last], d[last]),
		SignalMACDGoldenCross: crossAbove(dif[prev], dea[prev], dif[last], dea[last]),
		SignalMACDDeadCross:   crossAbove(dea[prev], dif[prev], dea[last], dif[last]),
		SignalRSIOversold:     snap.RSI < cfg.RSIOversold,
	}
	return snap, nil
}

// crossAbove reports a cross of a over b between the previous and last bar.
func crossAbove(prevA, prevB, lastA, lastB float64) bool {
	return prevA <= prevB && lastA > lastB
}
