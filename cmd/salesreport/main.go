// Command salesreport computes the seller performance report for a dataset
// file and writes it as JSON, CSV or XLSX.
//
//	salesreport -data dataset.json [-format json|csv|xlsx] [-out report.csv] [-strict]
//
// Bonus tiers and discount clamping come from the same SALES_* environment
// variables as the server.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-engine/internal/analysis"
	"github.com/atmx/sales-engine/internal/config"
	"github.com/atmx/sales-engine/internal/dataset"
	"github.com/atmx/sales-engine/internal/export"
	"github.com/atmx/sales-engine/internal/model"
)

var timeNow = time.Now

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("report failed", "err", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("salesreport", flag.ContinueOnError)
	dataPath := fs.String("data", "", "dataset file (.json, .yaml or .yml)")
	format := fs.String("format", "json", "output format: json, csv or xlsx")
	outPath := fs.String("out", "", "output file (defaults to stdout)")
	strict := fs.Bool("strict", false, "apply the import validation rules before analysis")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		fs.Usage()
		return errors.New("-data is required")
	}
	if *format != "json" {
		if _, err := export.ParseFormat(*format); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ds, err := dataset.Load(*dataPath)
	if err != nil {
		return err
	}
	slog.Info("loaded dataset",
		"path", *dataPath,
		"sellers", len(ds.Sellers),
		"products", len(ds.Products),
		"purchase_records", len(ds.PurchaseRecords),
	)

	if *strict {
		if err := dataset.NewValidator().Validate(ds); err != nil {
			return err
		}
	}

	sellers, err := analysis.Analyze(ds, cfg.AnalysisOptions())
	if err != nil {
		return err
	}

	out := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := write(out, *format, sellers); err != nil {
		return err
	}
	slog.Info("report written", "format", *format, "sellers", len(sellers))
	return nil
}

func write(w io.Writer, format string, sellers []model.SellerReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(model.Report{
			ID:          uuid.NewString(),
			GeneratedAt: timeNow().UTC(),
			Sellers:     sellers,
		})
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	return export.Write(w, f, sellers)
}
