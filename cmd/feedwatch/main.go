// feedwatch connects to the live market feed and streams decoded packets to
// console. Usage: go run ./cmd/feedwatch --config configs/feed.local.yaml
//
// Required environment variables (referenced from the config file):
//
//	DHAN_ACCESS_TOKEN - Data API access token
//	DHAN_CLIENT_ID    - Numeric client id
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/quantrail/dhanfeed/config"
	"github.com/quantrail/dhanfeed/marketfeed"
)

func main() {
	configPath := flag.String("config", "configs/feed.example.yaml", "path to config file")
	securityIDs := flag.String("instruments", "1333,11536", "comma-separated NSE equity security ids")
	mode := flag.String("mode", "ticker", "feed mode: ticker, quote or full")
	verbose := flag.Bool("verbose", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// Pick up credentials from a local .env when present.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var code marketfeed.RequestCode
	switch *mode {
	case "ticker":
		code = marketfeed.RequestSubscribeTicker
	case "quote":
		code = marketfeed.RequestSubscribeQuote
	case "full":
		code = marketfeed.RequestSubscribeFull
	default:
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}

	var instruments []marketfeed.Instrument
	for _, id := range strings.Split(*securityIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		instruments = append(instruments, marketfeed.Instrument{
			ExchangeSegment: marketfeed.SegmentNSEEquity,
			SecurityID:      id,
		})
	}

	feed, err := marketfeed.New(cfg, marketfeed.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create feed", "error", err)
		os.Exit(1)
	}
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := feed.Subscribe(ctx, instruments, code); err != nil {
		logger.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	logger.Info("subscribed", "mode", *mode, "instruments", len(instruments))

	for {
		select {
		case <-ctx.Done():
			for _, st := range feed.ConnectionStatus() {
				logger.Info("connection",
					"id", st.ID,
					"state", st.State,
					"instruments", st.Instruments,
				)
			}
			return

		case ev := <-feed.Events():
			switch ev.Type {
			case marketfeed.EventMessage:
				printPacket(ev)
			case marketfeed.EventConnect:
				logger.Info("connected", "conn_id", ev.ConnID)
			case marketfeed.EventClose:
				logger.Warn("socket closed", "conn_id", ev.ConnID, "reason", ev.Reason)
			case marketfeed.EventDisconnection:
				logger.Warn("server disconnect", "conn_id", ev.ConnID, "code", ev.Code, "reason", ev.Reason)
			case marketfeed.EventError:
				logger.Error("feed error", "conn_id", ev.ConnID, "error", ev.Err)
			case marketfeed.EventMaxReconnect:
				logger.Error("connection gave up reconnecting", "conn_id", ev.ConnID)
			}
		}
	}
}

func printPacket(ev marketfeed.Event) {
	switch p := ev.Packet.(type) {
	case *marketfeed.TickerPacket:
		fmt.Printf("TICKER conn=%d %s/%d ltp=%.2f t=%d\n",
			ev.ConnID, p.ExchangeSegment, p.SecurityID, p.LastTradedPrice, p.LastTradeTime)
	case *marketfeed.QuotePacket:
		fmt.Printf("QUOTE  conn=%d %s/%d ltp=%.2f vol=%d o=%.2f h=%.2f l=%.2f c=%.2f\n",
			ev.ConnID, p.ExchangeSegment, p.SecurityID, p.LastTradedPrice, p.Volume,
			p.DayOpen, p.DayHigh, p.DayLow, p.DayClose)
	case *marketfeed.FullPacket:
		fmt.Printf("FULL   conn=%d %s/%d ltp=%.2f oi=%d bid=%.2f ask=%.2f\n",
			ev.ConnID, p.ExchangeSegment, p.SecurityID, p.LastTradedPrice, p.OpenInterest,
			p.Depth[0].BidPrice, p.Depth[0].AskPrice)
	case *marketfeed.PrevClosePacket:
		fmt.Printf("PCLOSE conn=%d %s/%d close=%.2f\n",
			ev.ConnID, p.ExchangeSegment, p.SecurityID, p.PreviousClose)
	case *marketfeed.MarketStatusPacket:
		fmt.Printf("STATUS conn=%d open=%v\n", ev.ConnID, p.Open)
	}
}
