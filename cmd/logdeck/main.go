package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillside/logdeck"
)

// Demo harness: runs a console over synthetic slog traffic and prints the
// selected view on an interval, the way an embedding host would poll it.
func main() {
	// Command-line flags
	configPath := flag.String("config", "", "Path to YAML config file")
	strategyStr := flag.String("strategy", "smart", "View strategy: plain, collapse or smart")
	quickFilter := flag.String("filter", "", "Quick-filter expression, e.g. 'severity:error OR texture'")
	interval := flag.Duration("interval", 2*time.Second, "View refresh interval")
	flag.Parse()

	cfg, err := logdeck.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	console, err := logdeck.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start console: %v", err)
	}
	defer console.Close()

	console.Start()
	log.Printf("logdeck started. Data: %s, Capacity: %d", cfg.DataDir, cfg.Capacity)
	if sess := console.SinkSession(); sess != "" {
		log.Printf("Sink session: %s", sess)
	}

	strategy := logdeck.Strategy(*strategyStr)
	if _, err := console.View(strategy, logdeck.ViewOptions{Query: *quickFilter}); err != nil {
		log.Fatalf("Invalid view: %v", err)
	}

	// Synthetic host traffic through the intercepted default logger.
	stop := make(chan struct{})
	go generateTraffic(stop)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			printView(console, strategy, *quickFilter)
		case sig := <-quit:
			log.Printf("Received signal: %v. Shutting down...", sig)
			close(stop)
			console.Stop()
			log.Println("logdeck exited gracefully.")
			return
		}
	}
}

func generateTraffic(stop chan struct{}) {
	messages := []struct {
		level slog.Level
		msg   string
	}{
		{slog.LevelInfo, "frame rendered"},
		{slog.LevelInfo, "asset cache hit"},
		{slog.LevelWarn, "asset cache miss, loading from disk"},
		{slog.LevelWarn, "pool exhausted, growing"},
		{slog.LevelError, "shader compilation failed"},
	}

	for {
		select {
		case <-stop:
			return
		case <-time.After(time.Duration(50+rand.Intn(200)) * time.Millisecond):
			m := messages[rand.Intn(len(messages))]
			slog.Log(context.Background(), m.level, m.msg)
		}
	}
}

func printView(console *logdeck.Console, strategy logdeck.Strategy, filter string) {
	dirty, err := console.Flush(strategy)
	if err != nil || !dirty {
		return
	}
	recs, err := console.View(strategy, logdeck.ViewOptions{Query: filter})
	if err != nil {
		fmt.Fprintf(os.Stderr, "view: %v\n", err)
		return
	}
	counts, _ := console.Counts(strategy)

	fmt.Printf("--- %s view: %d records (info=%d warn=%d err=%d exc=%d) ---\n",
		strategy, len(recs),
		counts[logdeck.SeverityInfo], counts[logdeck.SeverityWarning],
		counts[logdeck.SeverityError], counts[logdeck.SeverityException])
	for i, rec := range recs {
		if i == 10 {
			fmt.Printf("    ... %d more\n", len(recs)-10)
			break
		}
		repeat := ""
		if rec.RepeatCount > 1 {
			repeat = fmt.Sprintf(" (x%d)", rec.RepeatCount)
		}
		fmt.Printf("  [%s] %s: %s%s\n", rec.Severity, rec.Source, rec.Message, repeat)
	}
}
