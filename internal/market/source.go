package market

import "context"

// Source 提供行情数据。Implementations must be safe for concurrent use.
type Source interface {
	// Quote returns the latest traded price for an exchange code like "600547".
	Quote(ctx context.Context, code string) (Quote, error)
	// DailyCandles returns up to limit daily bars, oldest first, ending today.
	DailyCandles(ctx context.Context, code string, limit int) ([]Candle, error)
}
