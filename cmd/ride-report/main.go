package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/ride.report/internal/db"
	"github.com/banshee-data/ride.report/internal/version"
)

var configPath = flag.String("config", "", "Path to ride-report.yaml (default: ./ride-report.yaml if present)")

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "analyze":
		err = handleAnalyze(args)
	case "runs":
		err = handleRuns(args)
	case "serve":
		err = handleServe(args)
	case "migrate":
		err = handleMigrate(args)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func handleMigrate(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		db.PrintMigrateHelp(os.Stdout)
		return nil
	}
	return db.RunMigrateCommand(args, cfg.Database.Path, os.Stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `ride-report - rider safety analysis for dash-cam ride videos

Usage: ride-report [-config file] <command> [options]

Commands:
  analyze <video>   Analyse a ride video, print the summary and write reports
  runs              List stored rides, newest first
  serve             Run the HTTP API over stored rides
  migrate <action>  Manage the ride database schema (up, down, status, version N, force N)
  version           Show ride-report version
  help              Show this help message

Analyze Flags:
  -no-store         Do not save the ride to the database
  -no-publish       Do not publish critical events to Kafka
  -report-dir <d>   Override report.dir from the config
  -json             Print the full outcome as JSON instead of the summary

Runs Flags:
  -limit <n>        Number of rides to list (default: 20)

Serve Flags:
  -listen <addr>    Override http.listen from the config

Configuration:
  Settings are read from ride-report.yaml and may be overridden with
  RIDE_* environment variables, e.g. RIDE_DATABASE_PATH or RIDE_KAFKA_ENABLED.
  Detection thresholds come from the JSON file named by tuning.path.

Examples:
  ride-report analyze rides/dhaka-morning.mp4
  ride-report runs -limit 5
  ride-report -config /etc/ride-report.yaml serve -listen :9090
  ride-report migrate status
`)
}
