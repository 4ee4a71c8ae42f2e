// Command diffstitch applies markdown-embedded unified-diff patches to a
// directory tree, locating each hunk's target region by content rather
// than by line number.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/floegence/diffstitch/internal/auditlog"
	"github.com/floegence/diffstitch/internal/config"
	"github.com/floegence/diffstitch/internal/diffpatch"
	"github.com/floegence/diffstitch/internal/diffpreview"
	"github.com/floegence/diffstitch/internal/history"
	"github.com/floegence/diffstitch/internal/lockfile"
	"github.com/floegence/diffstitch/internal/report"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildTime is set via -ldflags at build time.
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "apply":
		os.Exit(applyCmd(os.Args[2:]))
	case "preview":
		os.Exit(applyCmdWithDryRun(os.Args[2:]))
	case "history":
		os.Exit(historyCmd(os.Args[2:]))
	case "version":
		fmt.Printf("diffstitch %s (%s) %s\n", Version, Commit, BuildTime)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `diffstitch

Usage:
  diffstitch apply [flags] <patch-file.md>
  diffstitch preview [flags] <patch-file.md>
  diffstitch history [flags]
  diffstitch version

Commands:
  apply     Apply every patch found in the given markdown file.
  preview   Dry-run apply: target files are not written; a colorized
            preview is shown when stdout is a terminal.
  history   List recent runs from the sqlite history store.
  version   Print build information.

`)
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func applyCmd(args []string) int {
	return runApply(args, false)
}

func applyCmdWithDryRun(args []string) int {
	return runApply(args, true)
}

func runApply(args []string, forceDryRun bool) int {
	fs := newFlagSet("apply")
	targetDir := fs.String("target-dir", "", "Directory patches are applied against (default: config's target_dir, or cwd)")
	fuzzThreshold := fs.Float64("fuzz-threshold", -1, "Character-level fuzzy-match floor in [0,1]; negative uses config default")
	dryRun := fs.Bool("dry-run", false, "Compute and preview the result without writing to disk")
	reportPath := fs.String("report", "", "If set, write a JSON debug report to this path")
	configPath := fs.String("config", "", "Config file path (default: "+config.DefaultConfigPath()+")")
	_ = fs.Parse(args)

	if forceDryRun {
		*dryRun = true
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "diffstitch apply: missing patch file argument")
		fs.Usage()
		return 2
	}
	patchFile := fs.Arg(0)

	cfgPath := strings.TrimSpace(*configPath)
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	dir := strings.TrimSpace(*targetDir)
	if dir == "" {
		dir = cfg.TargetDir
	}
	if dir == "" || dir == "." {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}

	fuzz := cfg.FuzzThreshold
	if *fuzzThreshold >= 0 {
		fuzz = *fuzzThreshold
	}

	logger := newLogger(cfg)

	if !*dryRun {
		lock, err := lockfile.Acquire(filepath.Join(dir, ".diffstitch.lock"))
		if err != nil {
			if errors.Is(err, lockfile.ErrAlreadyLocked) {
				fmt.Fprintf(os.Stderr, "diffstitch: another apply is already running against %s\n", dir)
			} else {
				fmt.Fprintf(os.Stderr, "acquire lock: %v\n", err)
			}
			return 1
		}
		defer lock.Release()
	}

	raw, err := os.ReadFile(patchFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read patch file: %v\n", err)
		return 1
	}

	patches, err := diffpatch.Parse(string(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse patch file: %v\n", err)
		return 1
	}
	if len(patches) == 0 {
		fmt.Fprintln(os.Stderr, "diffstitch: no diff blocks found")
		return 1
	}

	var audit *auditlog.Store
	if stateDir := filepath.Dir(cfgPath); stateDir != "" && stateDir != "." {
		if a, err := auditlog.New(auditlog.Options{Logger: logger, StateDir: stateDir}); err == nil {
			audit = a
		}
	}

	var hist *history.Store
	var runID string
	if cfg.HistoryDBPath != "" {
		if h, err := history.Open(cfg.HistoryDBPath); err == nil {
			hist = h
			defer hist.Close()
			if id, err := hist.StartRun(dir, *dryRun); err == nil {
				runID = id
			}
		}
	}

	rep := report.NewBuilder(runID, dir, *dryRun)
	styles := diffpreview.NewStyles()
	colorize := stdoutIsTTY()

	exitCode := 0
	for _, patch := range patches {
		if cfg.ShouldIgnore(patch.FilePath) {
			logger.Info("skipping ignored file", "path", patch.FilePath)
			continue
		}

		if *dryRun && colorize {
			fmt.Println(diffpreview.Render(patch, styles))
		}

		res, err := diffpatch.ApplyPatch(patch, diffpatch.Options{
			TargetDir:     dir,
			DryRun:        *dryRun,
			FuzzThreshold: fuzz,
			Log:           logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", patch.FilePath, err)
			rep.AddPatch(patch.FilePath, "failed", len(patch.Hunks), len(patch.Hunks), err.Error())
			audit.Append(auditlog.Entry{FilePath: patch.FilePath, Status: "failed", HunkCount: len(patch.Hunks), Error: err.Error(), DryRun: *dryRun, RunID: runID})
			if hist != nil {
				_ = hist.RecordPatch(history.PatchRecord{RunID: runID, FilePath: patch.FilePath, Status: "failed", HunkCount: len(patch.Hunks), FailedHunks: len(patch.Hunks), Error: err.Error()})
			}
			exitCode = 1
			continue
		}

		status := "applied"
		if !res.Applied {
			status = "partial"
			exitCode = 1
		}
		if colorize && len(res.Failures) > 0 {
			fmt.Fprint(os.Stderr, diffpreview.RenderFailureSummary(res.Failures, styles))
		}

		rep.AddPatch(patch.FilePath, status, len(patch.Hunks), len(res.Failures), "")
		audit.Append(auditlog.Entry{FilePath: patch.FilePath, Status: status, HunkCount: len(patch.Hunks), FailedHunks: len(res.Failures), DryRun: *dryRun, RunID: runID})
		if hist != nil {
			_ = hist.RecordPatch(history.PatchRecord{RunID: runID, FilePath: patch.FilePath, Status: status, HunkCount: len(patch.Hunks), FailedHunks: len(res.Failures)})
		}

		fmt.Printf("%s: %s (%s)\n", patch.FilePath, status, humanize.Bytes(uint64(len(res.Content))))
	}

	if hist != nil && runID != "" {
		_ = hist.FinishRun(runID)
	}

	if path := strings.TrimSpace(*reportPath); path != "" {
		if err := os.WriteFile(path, []byte(rep.Raw()), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write report: %v\n", err)
			exitCode = 1
		}
	}

	return exitCode
}

func historyCmd(args []string) int {
	fs := newFlagSet("history")
	configPath := fs.String("config", "", "Config file path (default: "+config.DefaultConfigPath()+")")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	_ = fs.Parse(args)

	cfgPath := strings.TrimSpace(*configPath)
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if cfg.HistoryDBPath == "" {
		fmt.Fprintln(os.Stderr, "diffstitch history: history_db_path is not configured")
		return 1
	}

	hist, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open history: %v\n", err)
		return 1
	}
	defer hist.Close()

	runs, err := hist.ListRuns(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list runs: %v\n", err)
		return 1
	}
	for _, r := range runs {
		fmt.Printf("%s  %-40s dry_run=%v finished=%v\n", r.ID, r.TargetDir, r.DryRun, r.FinishedAt != "")
	}
	return 0
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(cfg.LogFormat), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func stdoutIsTTY() bool {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return true
	}
	_, _, err := term.GetSize(int(os.Stdout.Fd()))
	return err == nil
}
