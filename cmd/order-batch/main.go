package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/groupbuy-orders/internal/batch"
	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/export"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in      = flag.String("in", "", "input CSV with columns no, guide, order, label (required)")
		outdir  = flag.String("outdir", "test_result", "directory for result files")
		xlsx    = flag.Bool("xlsx", false, "also write an XLSX copy of the results")
		workers = flag.Int("workers", batch.DefaultWorkers, "cases evaluated in parallel")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: --in is required\n")
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	logger, flush := common.NewLogger(cfg.Log)
	defer flush()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	f, err := os.Open(*in)
	if err != nil {
		logger.Error("failed to open input", "path", *in, "error", err)
		os.Exit(1)
	}
	cases, err := batch.ReadCases(f)
	_ = f.Close()
	if err != nil {
		logger.Error("failed to read cases", "path", *in, "error", err)
		os.Exit(1)
	}
	logger.Info("starting batch", "cases", len(cases), "workers", *workers)

	runner := &batch.Runner{Workers: *workers, Logger: logger}
	results, err := runner.Run(ctx, cases)
	if err != nil {
		logger.Error("batch interrupted", "error", err)
		os.Exit(1)
	}

	now := time.Now()
	csvPath, err := batch.WriteCSVFile(*outdir, now, results)
	if err != nil {
		logger.Error("failed to write results", "error", err)
		os.Exit(1)
	}

	xlsxPath := ""
	if *xlsx {
		b, err := export.BatchResultsXLSX(results)
		if err != nil {
			logger.Error("failed to build xlsx", "error", err)
			os.Exit(1)
		}
		xlsxPath = filepath.Join(*outdir, strings.TrimSuffix(filepath.Base(csvPath), ".csv")+".xlsx")
		if err := os.WriteFile(xlsxPath, b, 0o644); err != nil {
			logger.Error("failed to write xlsx", "path", xlsxPath, "error", err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Order == batch.ErrorOrder {
			failed++
		}
	}
	fmt.Printf("Cases:       %d (%d failed)\n", len(results), failed)
	fmt.Printf("Mean score:  %.3f\n", batch.MeanScore(results))
	fmt.Printf("Results:     %s\n", csvPath)
	if xlsxPath != "" {
		fmt.Printf("Workbook:    %s\n", xlsxPath)
	}
}
