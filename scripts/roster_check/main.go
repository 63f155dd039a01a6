package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/permit-deadline-api/internal/permit"
	"github.com/noah-isme/permit-deadline-api/internal/service"
	"github.com/noah-isme/permit-deadline-api/pkg/config"
	"github.com/noah-isme/permit-deadline-api/pkg/export"
	"github.com/noah-isme/permit-deadline-api/pkg/logger"
)

type alertLine struct {
	Index            int    `json:"index"`
	StaffCode        string `json:"staffCode"`
	Name             string `json:"name"`
	PermitStatus     string `json:"permitStatus"`
	Expiration       string `json:"expiration"`
	DaysToExpiration int    `json:"daysToExpiration"`
}

type report struct {
	Workbook  string      `json:"workbook"`
	Today     string      `json:"today"`
	Summary   interface{} `json:"summary"`
	Alerts    []alertLine `json:"alerts"`
	Processed string      `json:"processed,omitempty"`
}

func main() {
	var (
		path      string
		today     string
		processed bool
		out       string
	)

	flag.StringVar(&path, "workbook", "", "Roster workbook (.xlsx)")
	flag.StringVar(&today, "today", "", "Evaluate as of this date (YYYY-MM-DD), defaults to now")
	flag.BoolVar(&processed, "processed", false, "Also write the processed workbook next to the source")
	flag.StringVar(&out, "out", "", "Write the JSON report to this file instead of stdout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	asOf := time.Now()
	if today != "" {
		asOf, err = time.ParseInLocation("2006-01-02", today, time.Local)
		if err != nil {
			log.Fatalf("invalid -today value %q: %v", today, err)
		}
	}

	dir, file := cfg.Workbook.Dir, cfg.Workbook.DefaultFile
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			log.Fatalf("failed to resolve workbook: %v", err)
		}
		dir, file = filepath.Dir(abs), filepath.Base(abs)
	}

	workbook := service.NewWorkbookService(
		service.WorkbookServiceConfig{Dir: dir, DefaultFile: file},
		export.NewXLSXWriter(),
		export.NewCSVExporter(),
		export.NewPDFExporter(cfg.Exports.PDFFontPath),
		nil,
		logr,
	)

	ctx := context.Background()
	ds, err := workbook.Load(ctx, file)
	if err != nil {
		logr.Fatal("workbook rejected", zap.String("workbook", file), zap.Error(err))
	}

	policy := permit.Policy{
		GraceDays:  cfg.Policy.ElapsedGraceDays,
		CapDays:    cfg.Policy.ElapsedCapDays,
		Thresholds: cfg.Policy.Thresholds,
	}
	rep := report{
		Workbook: ds.SourcePath,
		Today:    asOf.Format("2006-01-02"),
		Summary:  permit.Summarize(ds, asOf, policy),
	}
	for _, a := range permit.Alerts(ds, asOf) {
		rep.Alerts = append(rep.Alerts, alertLine{
			Index:            a.Index,
			StaffCode:        a.Record.StaffCode,
			Name:             a.Record.Name1,
			PermitStatus:     a.Record.PermitStatus,
			Expiration:       permit.FormatDate(a.Record.ExpirationDate),
			DaysToExpiration: a.DaysToExpiration,
		})
	}

	if processed {
		result, err := workbook.SaveProcessed(ctx, ds, "")
		if err != nil {
			logr.Fatal("failed to write processed workbook", zap.Error(err))
		}
		rep.Processed = result.Path
		if result.Fallback {
			logr.Warn("processed workbook written to fallback path", zap.String("path", result.Path))
		}
	}

	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode report: %v", err)
	}
	if out == "" {
		fmt.Println(string(payload))
	} else if err := os.WriteFile(out, append(payload, '\n'), 0o644); err != nil {
		log.Fatalf("failed to write report: %v", err)
	}

	if len(rep.Alerts) > 0 {
		os.Exit(2)
	}
}
