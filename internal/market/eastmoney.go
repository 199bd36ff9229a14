package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"aurum/internal/logger"
	"aurum/internal/pkg/circuit"
)

const (
	quoteEndpoint = "https://push2.eastmoney.com/api/qt/stock/get"
	klineEndpoint = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// EastmoneySource 从东方财富行情接口拉取 A 股报价与日线。
type EastmoneySource struct {
	client   *http.Client
	quoteURL string
	klineURL string
	breaker  *circuit.Breaker
}

func NewEastmoneySource() *EastmoneySource {
	return &EastmoneySource{
		client:   &http.Client{Timeout: 10 * time.Second},
		quoteURL: quoteEndpoint,
		klineURL: klineEndpoint,
		breaker:  circuit.New("eastmoney", 5, 30*time.Second),
	}
}

// secID maps a bare exchange code to eastmoney's market-prefixed id.
// Shanghai listings (60x/68x) use market 1, Shenzhen (00x/30x) market 0.
func secID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

func (s *EastmoneySource) Quote(ctx context.Context, code string) (Quote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Quote{}, fmt.Errorf("quote: stock code cannot be empty")
	}
	url := fmt.Sprintf("%s?secid=%s&fields=f43,f57,f58,f86", s.quoteURL, secID(code))
	body, err := s.fetch(ctx, url)
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", code, err)
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return Quote{}, fmt.Errorf("quote %s: empty payload", code)
	}
	raw := data.Get("f43")
	if !raw.Exists() || raw.Type == gjson.Null {
		return Quote{}, fmt.Errorf("quote %s: no price field", code)
	}
	// f43 is the price scaled by 100.
	price := decimal.NewFromFloat(raw.Float()).Div(decimal.NewFromInt(100))
	if price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("quote %s: non-positive price %s", code, price)
	}
	q := Quote{
		Code:  code,
		Name:  data.Get("f58").String(),
		Price: price,
		Time:  time.Now(),
	}
	if ts := data.Get("f86").Int(); ts > 0 {
		q.Time = time.Unix(ts, 0)
	}
	return q, nil
}

func (s *EastmoneySource) DailyCandles(ctx context.Context, code string, limit int) ([]Candle, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("kline: stock code cannot be empty")
	}
	if limit <= 0 {
		limit = 120
	}
	url := fmt.Sprintf(
		"%s?secid=%s&klt=101&fqt=1&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56&end=20500101&lmt=%d",
		s.klineURL, secID(code), limit,
	)
	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("kline %s: %w", code, err)
	}
	lines := gjson.GetBytes(body, "data.klines")
	if !lines.Exists() || !lines.IsArray() {
		return nil, fmt.Errorf("kline %s: empty payload", code)
	}
	candles, err := parseKlines(lines.Array())
	if err != nil {
		return nil, fmt.Errorf("kline %s: %w", code, err)
	}
	return candles, nil
}

// parseKlines decodes "date,open,close,high,low,volume" rows.
func parseKlines(rows []gjson.Result) ([]Candle, error) {
	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		parts := strings.Split(row.String(), ",")
		if len(parts) < 6 {
			return nil, fmt.Errorf("malformed kline row %q", row.String())
		}
		date, err := time.Parse("2006-01-02", parts[0])
		if err != nil {
			return nil, fmt.Errorf("malformed kline date %q", parts[0])
		}
		c := Candle{Date: date}
		for i, dst := range []*float64{&c.Open, &c.Close, &c.High, &c.Low, &c.Volume} {
			v := gjson.Parse(parts[i+1])
			if v.Type != gjson.Number {
				return nil, fmt.Errorf("malformed kline value %q", parts[i+1])
			}
			*dst = v.Float()
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (s *EastmoneySource) fetch(ctx context.Context, url string) ([]byte, error) {
	if s.breaker != nil && !s.breaker.Allow() {
		return nil, fmt.Errorf("行情接口熔断中，跳过请求")
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			}
			logger.Debugf("行情请求重试 attempt=%d url=%s", attempt, url)
		}
		body, err := s.fetchOnce(ctx, url)
		if err == nil {
			if s.breaker != nil {
				s.breaker.Success()
			}
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	if s.breaker != nil {
		s.breaker.Failure()
	}
	return nil, lastErr
}

func (s *EastmoneySource) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
