package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/mattjoyce/speclaunch/internal/config"
	"github.com/mattjoyce/speclaunch/internal/doctor"
	"github.com/mattjoyce/speclaunch/internal/history"
	"github.com/mattjoyce/speclaunch/internal/inspect"
	"github.com/mattjoyce/speclaunch/internal/storage"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "inspect":
		if hasHelpFlag(beforeDashDash(args)) {
			printInspectHelp()
			return 0
		}
		return runInspect(args)
	case "history":
		return runHistoryNoun(args)
	case "config":
		return runConfigNoun(args)
	case "doctor":
		return runConfigCheck(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: speclaunch version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("speclaunch %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`speclaunch - operator tools for the launch job runner

Usage:
  speclaunch <command> [flags]

Commands:
  inspect -- <flags>   Decode --spec-* launch flags and show the job, without running it
  history list         Show recent launches
  history show <id>    Show one launch in full
  history prune        Delete finished launches older than the retention
  config check         Validate configuration and host paths
  config show          Print the effective configuration as YAML
  version              Show version information
  help                 Show this help message

Configuration is read from --config, $SPECLAUNCH_CONFIG,
~/.config/speclaunch/config.yaml or /etc/speclaunch/config.yaml.
`)
}

// --- NOUN DISPATCHERS ---

func runHistoryNoun(args []string) int {
	if len(args) < 1 {
		printHistoryNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printHistoryNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printHistoryListHelp()
			return 0
		}
		return runHistoryList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printHistoryShowHelp()
			return 0
		}
		return runHistoryShow(actionArgs)
	case "prune":
		if hasHelpFlag(actionArgs) {
			printHistoryPruneHelp()
			return 0
		}
		return runHistoryPrune(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown history action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// --- ACTIONS ---

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	showEnv := fs.Bool("show-env", false, "Include job environment values")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: speclaunch inspect [--json] [--show-env] -- <launch flags...>")
		return 1
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	// Build skips argv[0] the same way the launcher does.
	argv := append([]string{"launch"}, fs.Args()...)
	report := inspect.Build(argv, inspect.Options{
		Policy:  cfg.Spec.Policy(),
		ShowEnv: *showEnv,
	})

	if *jsonOut {
		data, err := report.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		fmt.Print(report.Text(themeFor(os.Stdout)))
	}

	if !report.Valid {
		return 1
	}
	return 0
}

func runHistoryList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", 20, "Maximum number of launches to show (0 for all)")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: speclaunch history list [--limit N] [--json]")
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openHistory(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	recs, err := store.List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := inspect.HistoryJSON(recs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}
	fmt.Print(inspect.HistoryTable(recs, themeFor(os.Stdout)))
	return 0
}

func runHistoryShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: speclaunch history show [--json] <id>")
		return 1
	}

	ctx := context.Background()
	store, closeDB, err := openHistory(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	rec, err := store.Get(ctx, fs.Arg(0))
	if errors.Is(err, history.ErrRecordNotFound) {
		fmt.Fprintf(os.Stderr, "No launch with id %s\n", fs.Arg(0))
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := inspect.HistoryRecordJSON(rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}
	fmt.Print(inspect.HistoryDetail(rec, themeFor(os.Stdout)))
	return 0
}

func runHistoryPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	olderThan := fs.Duration("older-than", 0, "Delete finished launches older than this (default: state.retention)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: speclaunch history prune [--older-than DURATION]")
		return 1
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	age := *olderThan
	if age == 0 {
		age = cfg.State.Retention
	}

	ctx := context.Background()
	db, err := openHistoryDB(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	n, err := history.New(db).Prune(ctx, age)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Pruned %d launch record(s) older than %s.\n", n, age)
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		if *jsonOut {
			out, _ := doctor.FormatJSON(&doctor.Result{
				Valid:  false,
				Source: *configPath,
				Errors: []doctor.Issue{{Category: "load", Message: err.Error()}},
			})
			fmt.Println(out)
		} else {
			fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		}
		return 1
	}

	result := doctor.New(cfg).Validate()
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	data, err := config.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.SourcePath != "" {
		fmt.Printf("# source: %s\n", cfg.SourcePath)
	} else {
		fmt.Println("# source: built-in defaults")
	}
	if fp, err := cfg.Fingerprint(); err == nil {
		fmt.Printf("# blake3: %s\n", fp)
	}
	fmt.Print(string(data))
	return 0
}

// --- HELPERS ---

func loadConfigForTool(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDiscovered()
}

func openHistoryDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if !cfg.HistoryEnabled() {
		return nil, fmt.Errorf("launch history is disabled (set state.path or $%s)", config.EnvStatePath)
	}
	return storage.OpenSQLite(ctx, cfg.State.Path)
}

func openHistory(ctx context.Context, configPath string) (*history.Store, func(), error) {
	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := openHistoryDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return history.New(db), func() { _ = db.Close() }, nil
}

func themeFor(f *os.File) inspect.Theme {
	if isTerminal(f) {
		return inspect.NewDefaultTheme()
	}
	return inspect.PlainTheme()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// beforeDashDash returns the arguments preceding "--" so that launch flags
// after it are never mistaken for help requests.
func beforeDashDash(args []string) []string {
	for i, arg := range args {
		if arg == "--" {
			return args[:i]
		}
	}
	return args
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printHistoryNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: speclaunch history <action> [flags]")
	fmt.Fprintln(w, "Actions: list, show, prune")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: speclaunch config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, show")
}

func printInspectHelp() {
	fmt.Println("Usage: speclaunch inspect [--config PATH] [--json] [--show-env] -- <launch flags...>")
	fmt.Println("Decode the --spec-* flags a launch would receive and print the job. Nothing is executed.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Flags decode to a valid job")
	fmt.Println("  1  A decoding stage failed")
}

func printHistoryListHelp() {
	fmt.Println("Usage: speclaunch history list [--config PATH] [--limit N] [--json]")
	fmt.Println("Show recent launches, newest first.")
}

func printHistoryShowHelp() {
	fmt.Println("Usage: speclaunch history show [--config PATH] [--json] <id>")
	fmt.Println("Show one launch record in full.")
}

func printHistoryPruneHelp() {
	fmt.Println("Usage: speclaunch history prune [--config PATH] [--older-than DURATION]")
	fmt.Println("Delete finished launch records older than DURATION (default: state.retention).")
	fmt.Println("Records still marked running are kept.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: speclaunch config check [--config PATH] [--json]")
	fmt.Println("Validate configuration, the history database location and the slot lock path.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Valid (warnings may be present)")
	fmt.Println("  1  One or more errors")
}

func printConfigShowHelp() {
	fmt.Println("Usage: speclaunch config show [--config PATH]")
	fmt.Println("Print the effective configuration, after defaults and environment overrides, as YAML.")
}
