// Package report builds the JSON debug report written alongside a run:
// one document summarizing every patch attempted, without round-tripping
// through a fixed Go struct for the whole tree — individual fields are
// set with sjson and read back with gjson so the report shape can grow
// without a matching struct change.
package report

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Builder accumulates one run's worth of patch outcomes into a JSON document.
type Builder struct {
	json string
}

// NewBuilder starts a report for runID against targetDir.
func NewBuilder(runID, targetDir string, dryRun bool) *Builder {
	b := &Builder{json: "{}"}
	b.set("run_id", runID)
	b.set("target_dir", targetDir)
	b.set("dry_run", dryRun)
	b.set("patches", []any{})
	return b
}

func (b *Builder) set(path string, value any) {
	out, err := sjson.Set(b.json, path, value)
	if err != nil {
		// sjson.Set only fails on a malformed path or a document that
		// isn't valid JSON; both are programmer errors, not runtime ones.
		panic(fmt.Sprintf("report: set %q: %v", path, err))
	}
	b.json = out
}

// AddPatch appends one patch's outcome to the report.
func (b *Builder) AddPatch(filePath, status string, hunkCount, failedHunks int, errMsg string) {
	idx := gjson.Get(b.json, "patches.#").Int()
	prefix := fmt.Sprintf("patches.%d.", idx)
	b.set(prefix+"file_path", filePath)
	b.set(prefix+"status", status)
	b.set(prefix+"hunk_count", hunkCount)
	b.set(prefix+"failed_hunks", failedHunks)
	if errMsg != "" {
		b.set(prefix+"error", errMsg)
	}
}

// Summary reports how many patches were fully applied vs. not.
func (b *Builder) Summary() (applied, partialOrFailed int) {
	gjson.Get(b.json, "patches").ForEach(func(_, patch gjson.Result) bool {
		if patch.Get("status").String() == "applied" {
			applied++
		} else {
			partialOrFailed++
		}
		return true
	})
	return applied, partialOrFailed
}

// Raw returns the accumulated report as compact JSON, suitable for
// writing directly to a debug-report file.
func (b *Builder) Raw() string {
	return b.json
}
