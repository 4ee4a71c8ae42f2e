package diffpatch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Result is the outcome of applying one Patch.
type Result struct {
	// Applied is true iff every hunk with changes was placed successfully.
	Applied bool
	// Failures holds one entry per hunk that could not be located.
	Failures []HunkFailure
	// Content is the buffer that was (or, in a dry run, would be) written.
	Content string
}

// Options configures a single ApplyPatch call.
type Options struct {
	// TargetDir is the directory patch.FilePath is resolved against.
	TargetDir string
	// DryRun, when true, computes the result but never writes the target
	// file. Path resolution still creates missing parent directories.
	DryRun bool
	// FuzzThreshold gates the locator's character-level fuzzy tier;
	// 0 disables it.
	FuzzThreshold float64
	// Log receives one line per soft failure; hard errors are returned,
	// not logged, so the caller can decide how to surface them. May be nil.
	Log *slog.Logger
}

// ApplyPatch resolves, loads, and mutates the target named by
// patch.FilePath under opts.TargetDir, applying each hunk in order
// against the (possibly already-spliced) line buffer. Hard errors abort
// before any write; soft failures (hunks that could not be located) are
// recorded in Result and do not stop the remaining hunks from being tried.
func ApplyPatch(patch Patch, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	_, targetAbs, err := resolveConfined(opts.TargetDir, patch.FilePath)
	if err != nil {
		return Result{}, err
	}

	info, statErr := os.Stat(targetAbs)
	exists := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return Result{}, &IOError{Path: targetAbs, Cause: statErr}
	}
	if exists && info.IsDir() {
		return Result{}, &IsADirectoryError{Path: targetAbs}
	}

	var buffer []string
	switch {
	case exists:
		raw, err := os.ReadFile(targetAbs)
		if err != nil {
			return Result{}, &IOError{Path: targetAbs, Cause: err}
		}
		buffer = splitLines(string(raw))
	case patch.IsCreation():
		buffer = nil
	default:
		return Result{}, &TargetNotFoundError{Path: targetAbs}
	}

	result := Result{Applied: true}
	for idx, hunk := range patch.Hunks {
		if !hunk.HasChanges() {
			continue
		}
		matchBlock := hunk.MatchBlock()
		replaceBlock := hunk.ReplaceBlock()

		start, ok := Locate(matchBlock, buffer, opts.FuzzThreshold)
		if !ok {
			reason := "no applicable location found"
			result.Failures = append(result.Failures, HunkFailure{Index: idx, Path: patch.FilePath, Reason: reason})
			result.Applied = false
			log.Warn("hunk apply failed", "path", patch.FilePath, "hunk", idx, "reason", reason)
			continue
		}

		next := make([]string, 0, len(buffer)-len(matchBlock)+len(replaceBlock))
		next = append(next, buffer[:start]...)
		next = append(next, replaceBlock...)
		next = append(next, buffer[start+len(matchBlock):]...)
		buffer = next
	}

	content := strings.Join(buffer, "\n")
	if patch.EndsWithNewline && content != "" {
		content += "\n"
	}
	result.Content = content

	if opts.DryRun {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(targetAbs), 0o755); err != nil {
		return Result{}, &IOError{Path: filepath.Dir(targetAbs), Cause: err}
	}
	if err := os.WriteFile(targetAbs, []byte(content), 0o644); err != nil {
		return Result{}, &IOError{Path: targetAbs, Cause: err}
	}

	return result, nil
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// resolveConfined joins targetDir with filePath and enforces that the
// canonicalized result lies under the canonicalized targetDir. If the
// target does not yet exist, its nearest existing ancestor directory is
// canonicalized (creating missing parents first) and the remaining
// components are appended uncanonicalized.
func resolveConfined(targetDir, filePath string) (base string, target string, err error) {
	if strings.TrimSpace(targetDir) == "" {
		return "", "", fmt.Errorf("empty target directory")
	}
	base, err = filepath.Abs(targetDir)
	if err != nil {
		return "", "", &IOError{Path: targetDir, Cause: err}
	}
	base, err = filepath.EvalSymlinks(base)
	if err != nil {
		return "", "", &IOError{Path: targetDir, Cause: err}
	}

	joined := filepath.Join(base, filePath)

	resolved, err := canonicalizeExistingOrParent(joined)
	if err != nil {
		return "", "", err
	}

	if !pathUnder(resolved, base) {
		return "", "", &PathTraversalError{Path: filePath}
	}
	return base, resolved, nil
}

// canonicalizeExistingOrParent resolves symlinks on the longest
// existing prefix of path (creating missing parent directories along
// the way), then re-appends the non-existent suffix unchanged.
func canonicalizeExistingOrParent(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", &IOError{Path: path, Cause: err}
		}
		return real, nil
	}

	parent := filepath.Dir(path)
	name := filepath.Base(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", &IOError{Path: parent, Cause: err}
	}
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return "", &IOError{Path: parent, Cause: err}
	}
	return filepath.Join(realParent, name), nil
}

func pathUnder(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
