package diffpatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocate_EmptyMatchBlock(t *testing.T) {
	t.Parallel()

	idx, ok := Locate(nil, nil, 0)
	require.True(t, ok)
	require.Equal(t, 0, idx)

	_, ok = Locate(nil, []string{"a"}, 0)
	require.False(t, ok)
}

func TestLocate_MatchBlockLargerThanTarget(t *testing.T) {
	t.Parallel()

	_, ok := Locate([]string{"a", "b"}, []string{"a"}, 0)
	require.False(t, ok)
}

func TestLocate_ExactUniqueMatch(t *testing.T) {
	t.Parallel()

	target := []string{"header", "change me", "footer"}
	idx, ok := Locate([]string{"header", "change me", "footer"}, target, 0)
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

func TestLocate_ExactAmbiguousNeverFallsThrough(t *testing.T) {
	t.Parallel()

	target := []string{"header", "change me", "footer", "header", "change me", "footer"}
	_, ok := Locate([]string{"header", "change me", "footer"}, target, 0.9)
	require.False(t, ok)
}

func TestLocate_WhitespaceInsensitiveTier(t *testing.T) {
	t.Parallel()

	target := []string{"line one  ", "line two"}
	idx, ok := Locate([]string{"line one"}, target, 0)
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

func TestLocate_WhitespaceTierAmbiguous(t *testing.T) {
	t.Parallel()

	target := []string{"line one  ", "line one\t"}
	_, ok := Locate([]string{"line one"}, target, 0)
	require.False(t, ok)
}

func TestLocate_FuzzyTierDisabledByDefault(t *testing.T) {
	t.Parallel()

	target := []string{"line onee"}
	_, ok := Locate([]string{"line one"}, target, 0)
	require.False(t, ok)
}

func TestLocate_FuzzyTierFindsDrift(t *testing.T) {
	t.Parallel()

	target := []string{"header", "line onee", "footer"}
	idx, ok := Locate([]string{"line one"}, target, 0.8)
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestLocate_FuzzyTierBelowThreshold(t *testing.T) {
	t.Parallel()

	target := []string{"completely different text"}
	_, ok := Locate([]string{"line one"}, target, 0.9)
	require.False(t, ok)
}

func TestLocate_FuzzyTierAmbiguousTie(t *testing.T) {
	t.Parallel()

	// Both windows differ from the match block by the same edit distance.
	target := []string{"line onex", "line oney"}
	_, ok := Locate([]string{"line one"}, target, 0.5)
	require.False(t, ok)
}
