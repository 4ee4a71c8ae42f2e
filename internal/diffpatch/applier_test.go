package diffpatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

func TestApplyPatch_SimpleReplace(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "test.txt", "line one\nline two\nline three\n")

	patch := Patch{
		FilePath:        "test.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilContext, Text: "line one"},
			{Sigil: SigilDelete, Text: "line two"},
			{Sigil: SigilAdd, Text: "line 2"},
			{Sigil: SigilContext, Text: "line three"},
		}}},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "line one\nline 2\nline three\n", readFile(t, dir, "test.txt"))
}

func TestApplyPatch_AmbiguousContextIsSoftFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	original := "header\nchange me\nfooter\nheader\nchange me\nfooter\n"
	writeFile(t, dir, "test.txt", original)

	patch := Patch{
		FilePath:        "test.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilContext, Text: "header"},
			{Sigil: SigilDelete, Text: "change me"},
			{Sigil: SigilAdd, Text: "changed"},
			{Sigil: SigilContext, Text: "footer"},
		}}},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Len(t, res.Failures, 1)
	require.Equal(t, original, readFile(t, dir, "test.txt"))
}

func TestApplyPatch_WhitespaceTolerantExact(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "test.txt", "line one  \n")

	patch := Patch{
		FilePath:        "test.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilDelete, Text: "line one"},
			{Sigil: SigilAdd, Text: "line ONE"},
		}}},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "line ONE\n", readFile(t, dir, "test.txt"))
}

func TestApplyPatch_FileCreation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	patch := Patch{
		FilePath:        "new_file.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilAdd, Text: "hello"},
			{Sigil: SigilAdd, Text: "world"},
		}}},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "hello\nworld\n", readFile(t, dir, "new_file.txt"))
}

func TestApplyPatch_PartialApply(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "test.txt", "alpha\nbeta\ngamma\n")

	patch := Patch{
		FilePath:        "test.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{
			{Lines: []Line{
				{Sigil: SigilDelete, Text: "alpha"},
				{Sigil: SigilAdd, Text: "ALPHA"},
			}},
			{Lines: []Line{
				{Sigil: SigilDelete, Text: "nonexistent"},
				{Sigil: SigilAdd, Text: "replacement"},
			}},
		},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Len(t, res.Failures, 1)
	require.Equal(t, 1, res.Failures[0].Index)
	require.Equal(t, "ALPHA\nbeta\ngamma\n", readFile(t, dir, "test.txt"))
}

func TestApplyPatch_PathTraversalRejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	patch := Patch{
		FilePath:        "../evil.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilAdd, Text: "pwned"},
		}}},
	}

	_, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.Error(t, err)
	var pte *PathTraversalError
	require.ErrorAs(t, err, &pte)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "evil.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestApplyPatch_TargetNotFoundWhenNotCreation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	patch := Patch{
		FilePath:        "missing.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilDelete, Text: "x"},
			{Sigil: SigilAdd, Text: "y"},
		}}},
	}

	_, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.Error(t, err)
	var tnf *TargetNotFoundError
	require.ErrorAs(t, err, &tnf)
}

func TestApplyPatch_IsADirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	patch := Patch{
		FilePath:        "sub",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilDelete, Text: "x"},
			{Sigil: SigilAdd, Text: "y"},
		}}},
	}

	_, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.Error(t, err)
	var iad *IsADirectoryError
	require.ErrorAs(t, err, &iad)
}

func TestApplyPatch_NoNewlineMarkerSuppressesTrailingNewline(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "test.txt", "a\nb")

	patch := Patch{
		FilePath:        "test.txt",
		EndsWithNewline: false,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilContext, Text: "a"},
			{Sigil: SigilDelete, Text: "b"},
			{Sigil: SigilAdd, Text: "B"},
		}}},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "a\nB", readFile(t, dir, "test.txt"))
}

func TestApplyPatch_NoOpHunkLeavesBufferUnchanged(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "test.txt", "a\nb\nc\n")

	patch := Patch{
		FilePath:        "test.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{{Lines: []Line{
			{Sigil: SigilContext, Text: "a"},
			{Sigil: SigilContext, Text: "b"},
		}}},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "a\nb\nc\n", readFile(t, dir, "test.txt"))
}

func TestApplyPatch_SequentialHunksSeeMutatedBuffer(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "test.txt", "one\ntwo\nthree\n")

	patch := Patch{
		FilePath:        "test.txt",
		EndsWithNewline: true,
		Hunks: []Hunk{
			{Lines: []Line{
				{Sigil: SigilDelete, Text: "one"},
				{Sigil: SigilAdd, Text: "ONE"},
				{Sigil: SigilAdd, Text: "inserted"},
			}},
			{Lines: []Line{
				{Sigil: SigilContext, Text: "inserted"},
				{Sigil: SigilDelete, Text: "two"},
				{Sigil: SigilAdd, Text: "TWO"},
			}},
		},
	}

	res, err := ApplyPatch(patch, Options{TargetDir: dir})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "ONE\ninserted\nTWO\nthree\n", readFile(t, dir, "test.txt"))
}
