package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/applications"
	"github.com/mpesa-console/internal/config"
	"github.com/mpesa-console/internal/database"
	"github.com/mpesa-console/internal/functions"
	"github.com/mpesa-console/internal/report"
	"github.com/mpesa-console/internal/store"
	"github.com/mpesa-console/internal/transactions"
)

// Command line flags
var (
	days      = flag.Int("days", 0, "Window length in days (default from CONSOLE_DASHBOARD_DAYS)")
	top       = flag.Int("top", 0, "Number of top applications (default from CONSOLE_DASHBOARD_TOP)")
	appID     = flag.String("app", "", "Restrict to one application id")
	chartPath = flag.String("chart", "", "Write the daily amounts as a PNG bar chart to this path")
	format    = flag.String("format", "table", "Output format: table, json")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()

	if *format != "table" && *format != "json" {
		logrus.Fatalf("Unknown format %q, use table or json", *format)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// a single report needs few connections
	cfg.DBMinConns, cfg.DBMaxConns = 1, 4
	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	st := store.New(db.Pool)
	labels := applications.NewService(st, functions.NewClient(functions.ConfigFrom(cfg)))
	svc := transactions.NewService(st, labels, nil, transactions.Config{
		Location:        cfg.Location,
		MaxFetchRows:    cfg.MaxFetchRows,
		DashboardDays:   cfg.DashboardDays,
		DashboardTop:    cfg.DashboardTop,
		DashboardRecent: cfg.DashboardRecent,
	})

	res, err := svc.Dashboard(ctx, transactions.DashboardRequest{Days: *days, Top: *top, ApplicationID: *appID})
	if err != nil {
		logrus.Fatalf("Failed to compute dashboard: %v", err)
	}

	if *format == "json" {
		if err := report.WriteJSON(os.Stdout, res); err != nil {
			logrus.Fatalf("Failed to write report: %v", err)
		}
	} else {
		report.WriteTables(os.Stdout, res)
	}

	if *chartPath != "" {
		writeChart(*chartPath, res)
	}
}

func writeChart(path string, res transactions.DashboardResult) {
	f, err := os.Create(path)
	if err != nil {
		logrus.Fatalf("Failed to create chart file: %v", err)
	}
	defer f.Close()

	ok, err := report.WriteChart(f, res.Daily)
	if err != nil {
		logrus.Fatalf("Failed to render chart: %v", err)
	}
	if !ok {
		logrus.Warn("No amounts in window, chart not rendered")
		os.Remove(path)
		return
	}
	logrus.Infof("Chart written to %s", path)
}
