package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"econpulse/internal/aggregator"
	"econpulse/internal/cache"
	"econpulse/internal/commodities"
	"econpulse/internal/config"
	"econpulse/internal/model"
	"econpulse/internal/providers/argdatos"
	"econpulse/internal/providers/bcra"
	"econpulse/internal/providers/coingecko"
	"econpulse/internal/providers/dolarapi"
	"econpulse/internal/providers/yahoo"
	"econpulse/internal/ratelimit"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the overview as JSON")
	commoditiesPath := fs.String("commodities", "", "path to a conversion table override (empty = embedded default)")
	fs.Parse(args)

	if err := runOverview(*asJSON, *commoditiesPath); err != nil {
		fmt.Fprintln(os.Stderr, "overview run failed:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: overview run [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -json         print the overview as JSON")
	fmt.Fprintln(os.Stderr, "  -commodities  path to a conversion table override")
}

func runOverview(asJSON bool, commoditiesPath string) error {
	cfg := config.Load()

	table, err := loadTable(commoditiesPath)
	if err != nil {
		return err
	}

	limiter := ratelimit.New()
	dolar := dolarapi.New(cache.New[[]model.DollarQuote](8), limiter)
	central := bcra.New(cache.New[[]model.Indicator](8), cache.New[[]bcra.Observation](16), limiter)
	backup := argdatos.New(cache.New[model.Indicator](8), limiter)
	crypto := coingecko.New(cache.New[[]model.Indicator](8), limiter)
	futures := yahoo.New(table, cache.New[model.Indicator](16), limiter)

	headlines := make([]string, 0, 2)
	for _, commodity := range table.Headlines() {
		headlines = append(headlines, commodity.ID)
	}

	agg := aggregator.New(
		dolar,
		aggregator.DefaultFamilies(dolar, central, backup, crypto, futures),
		cache.New[model.MarketOverview](4),
		aggregator.Config{OverviewTTL: cfg.OverviewTTL, HeadlineCommodities: headlines},
	)

	overview := agg.BuildOverview(context.Background())

	if asJSON {
		encoded, err := json.MarshalIndent(overview, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	printOverview(overview)
	return nil
}

func loadTable(path string) (*commodities.Table, error) {
	if path == "" {
		return commodities.Load()
	}
	return commodities.LoadFile(path)
}

func printOverview(overview model.MarketOverview) {
	fmt.Printf("overview generated at %s\n\n", overview.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Println("ticker:")
	for _, item := range overview.Ticker {
		if item.Change != "" {
			fmt.Printf("  %-10s %10s  %s\n", item.Label, item.Value, item.Change)
			continue
		}
		fmt.Printf("  %-10s %10s\n", item.Label, item.Value)
	}

	for _, group := range overview.Groups {
		fmt.Printf("\n%s:\n", group.Name)
		for _, indicator := range group.Indicators {
			if indicator.NoData {
				fmt.Printf("  %-24s s/d  (%s)\n", indicator.Name, indicator.Disclaimer)
				continue
			}
			line := fmt.Sprintf("  %-24s %.*f %s", indicator.Name, indicator.Decimals, indicator.Value, indicator.Unit)
			if indicator.ChangePercent != 0 {
				line += fmt.Sprintf("  (%+.2f%%)", indicator.ChangePercent)
			}
			if indicator.IsFallback && indicator.Disclaimer != "" {
				line += "  [" + indicator.Disclaimer + "]"
			}
			fmt.Println(line)
		}
	}

	metrics := overview.DollarMetrics
	fmt.Println("\nbrechas:")
	printGap("blue", metrics.BlueGap)
	printGap("mep", metrics.MEPGap)
	printGap("ccl", metrics.CCLGap)
}

func printGap(name string, gap *float64) {
	if gap == nil {
		fmt.Printf("  %-5s s/d\n", name)
		return
	}
	fmt.Printf("  %-5s %+.2f%%\n", name, *gap)
}
