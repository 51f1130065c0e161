package indicators

import "CoinRadar/internal/domain/models"

// Standard windows.
const (
	SMAWindow       = 20
	FastEMAWindow   = 12
	SlowEMAWindow   = 26
	SignalEMAWindow = 9
	RSIWindow       = 14
)

// SMA is the arithmetic mean of the last window points.
// With fewer points it falls back to the most recent point, or 0 for an empty series.
func SMA(series []float64, window int) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	if window <= 0 || n < window {
		return series[n-1]
	}
	sum := 0.0
	for _, v := range series[n-window:] {
		sum += v
	}
	return sum / float64(window)
}

// EMA is the exponential moving average with alpha = 2/(window+1), seeded with the first point.
func EMA(series []float64, window int) float64 {
	if len(series) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(window) + 1.0)
	ema := series[0]
	for _, v := range series[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}

// RSI averages gains and losses over the last window deltas.
// It is 50 when fewer than window+1 points exist and 100 when the average loss is zero.
func RSI(series []float64, window int) float64 {
	if window <= 0 || len(series) < window+1 {
		return models.NeutralRSI
	}
	tail := series[len(series)-window-1:]
	var gains, losses float64
	for i := 1; i < len(tail); i++ {
		d := tail[i] - tail[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(window)
	avgLoss := losses / float64(window)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the line, signal and histogram. The signal is the EMA9 of the MACD line
// recomputed over every 26-point window ending at index 25 onward.
func MACD(series []float64) (line, signal, hist float64) {
	if len(series) < SlowEMAWindow {
		return 0, 0, 0
	}
	line = EMA(series, FastEMAWindow) - EMA(series, SlowEMAWindow)

	history := make([]float64, 0, len(series)-SlowEMAWindow+1)
	for end := SlowEMAWindow; end <= len(series); end++ {
		w := series[end-SlowEMAWindow : end]
		history = append(history, EMA(w, FastEMAWindow)-EMA(w, SlowEMAWindow))
	}
	signal = EMA(history, SignalEMAWindow)
	hist = line - signal
	return line, signal, hist
}

// Compute derives the indicator set from ascending price points.
// Each field stays at its neutral value until history covers its window.
func Compute(points []models.PricePoint) models.IndicatorSet {
	out := models.NeutralIndicators()
	if len(points) == 0 {
		return out
	}
	closes := models.Closes(points)
	n := len(closes)

	if n >= SMAWindow {
		out.SMA20 = SMA(closes, SMAWindow)
		out.VolumeSMA20 = SMA(models.Volumes(points), SMAWindow)
	}
	if n >= FastEMAWindow {
		out.EMA12 = EMA(closes, FastEMAWindow)
	}
	if n >= SlowEMAWindow {
		out.EMA26 = EMA(closes, SlowEMAWindow)
	}
	out.RSI = RSI(closes, RSIWindow)
	out.MACD, out.MACDSignal, out.MACDHistogram = MACD(closes)
	return out
}
