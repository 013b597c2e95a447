package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"multibot/internal/domain"
)

const (
	wsPongWait      = 60 * time.Second
	wsPingPeriod    = wsPongWait * 9 / 10
	wsReconnectWait = 5 * time.Second
)

type klineEvent struct {
	Event string `json:"e"`
	Time  int64  `json:"E"`
	Kline struct {
		Start  int64  `json:"t"`
		Open   string `json:"o"`
		High   string `json:"h"`
		Low    string `json:"l"`
		Close  string `json:"c"`
		Volume string `json:"v"`
		Final  bool   `json:"x"`
	} `json:"k"`
}

// SubscribeCandles starts a background reader on the symbol's kline stream
// and invokes handler for every closed candle. The connection is re-dialed
// after any read failure until ctx is cancelled.
func (a *BinanceAdapter) SubscribeCandles(ctx context.Context, symbol, interval string, handler func(domain.Candle)) error {
	url := fmt.Sprintf("%s/ws/%s@kline_%s", a.wsBaseURL, strings.ToLower(symbol), interval)

	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := a.streamKlines(ctx, url, handler); err != nil && ctx.Err() == nil {
				a.logger.Warn("Candle stream disconnected, reconnecting",
					zap.String("symbol", symbol),
					zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wsReconnectWait):
			}
		}
	}()

	return nil
}

// streamKlines holds one connection open, keeping it alive with pings, and
// blocks until the connection breaks or ctx is cancelled.
func (a *BinanceAdapter) streamKlines(ctx context.Context, url string, handler func(domain.Candle)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var event klineEvent
		if err := json.Unmarshal(message, &event); err != nil {
			a.logger.Warn("Failed to parse kline event", zap.Error(err))
			continue
		}
		if event.Event != "kline" || !event.Kline.Final {
			continue
		}

		open, _ := strconv.ParseFloat(event.Kline.Open, 64)
		high, _ := strconv.ParseFloat(event.Kline.High, 64)
		low, _ := strconv.ParseFloat(event.Kline.Low, 64)
		close_, _ := strconv.ParseFloat(event.Kline.Close, 64)
		volume, _ := strconv.ParseFloat(event.Kline.Volume, 64)

		handler(domain.Candle{
			Time:   event.Kline.Start,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close_,
			Volume: volume,
			Closed: true,
		})
	}
}
