package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mirrormap/mirrormap/client/internal/stats"
)

// StatsCmd scrapes the server's metrics endpoint and prints a summary.
// With an interval it keeps sampling and adds per-minute rates derived
// from consecutive scrapes.
type StatsCmd struct {
	Interval time.Duration `short:"n" long:"interval" description:"keep sampling at this interval (e.g. 10s)"`
}

func (c *StatsCmd) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	url, err := cfg.MetricsURL()
	if err != nil {
		return err
	}
	var key string
	if cfg.Auth.Mode == "apikey" {
		key = cfg.Auth.Key()
	}
	scraper := stats.New(url, stats.Options{
		Header:  cfg.Auth.Header,
		Key:     key,
		Timeout: cfg.Timeouts.Scrape,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap, err := scraper.Scrape(ctx)
	if err != nil {
		return err
	}
	printSnapshot(snap)
	if c.Interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	prev := snap
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur, err := scraper.Scrape(ctx)
			if err != nil {
				return err
			}
			fmt.Println()
			printSnapshot(cur)
			printRates(stats.Derive(prev, cur))
			prev = cur
		}
	}
}

func printSnapshot(s *stats.Snapshot) {
	fmt.Printf("scraped at %s\n", s.ScrapedAt.Format(time.RFC3339))
	fmt.Printf("%-20s %.0f\n", "sessions active", s.SessionsActive)
	fmt.Printf("%-20s %.0f\n", "docs open", s.DocsOpen)
	fmt.Printf("%-20s %.0f%s\n", "ops applied", s.TotalOps(), opsBreakdown(s.OpsApplied))
	fmt.Printf("%-20s %.0f\n", "ops rejected", s.OpsRejected)
	fmt.Printf("%-20s %.0f\n", "events broadcast", s.EventsSent)
	fmt.Printf("%-20s %.0f\n", "docs created", s.DocsCreated)
	fmt.Printf("%-20s %.0f\n", "docs evicted", s.DocsEvicted)
}

// opsBreakdown renders the per-kind split, sorted by kind.
func opsBreakdown(byKind map[string]float64) string {
	if len(byKind) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%.0f", k, byKind[k]))
	}
	return "  (" + strings.Join(parts, " ") + ")"
}

func printRates(r *stats.Rates) {
	fmt.Printf("%-20s %.1f/min over %s\n", "ops", r.TotalOpsPM, r.Window.Round(time.Second))
	fmt.Printf("%-20s %.1f/min\n", "events", r.EventsPM)
	fmt.Printf("%-20s %.1f/min\n", "rejected", r.RejectedPM)
}
