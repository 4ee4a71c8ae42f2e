package diffpatch

import "strings"

// Parse scans text for fenced ```diff blocks and returns the ordered
// list of Patch records they describe. It is a pure function: no I/O,
// deterministic, restartable (the input is scanned once, linearly).
//
// Text outside diff blocks is ignored entirely, including content that
// merely looks diff-like. The hunk header's numeric fields (`@@ -a,b
// +c,d @@`) are never consulted — `@@` is used only as a delimiter.
func Parse(text string) ([]Patch, error) {
	var patches []Patch

	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		if !isOpenFence(lines[i]) {
			i++
			continue
		}
		i++ // step past the opening fence line

		blockLines := make([]string, 0, 32)
		for i < len(lines) && !isCloseFence(lines[i]) {
			blockLines = append(blockLines, lines[i])
			i++
		}
		if i < len(lines) {
			i++ // step past the closing fence line
		}

		blockPatches, err := parseBlock(blockLines)
		if err != nil {
			return nil, err
		}
		patches = append(patches, blockPatches...)
	}

	return patches, nil
}

func isOpenFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```diff")
}

func isCloseFence(line string) bool {
	return strings.TrimSpace(line) == "```"
}

// parseBlock interprets the body of a single fenced diff block,
// potentially emitting more than one Patch (multi-file blocks).
func parseBlock(lines []string) ([]Patch, error) {
	var (
		out                []Patch
		curPath            string
		havePath           bool
		curHunks           []Hunk
		curHunk            *Hunk
		endsWithoutNewline bool
	)

	finalizeHunk := func() {
		if curHunk != nil && len(curHunk.Lines) > 0 {
			curHunks = append(curHunks, *curHunk)
		}
		curHunk = nil
	}

	finalizePatch := func() (*Patch, error) {
		finalizeHunk()
		if len(curHunks) == 0 {
			// Header with no hunks (or no header at all yet): nothing to emit.
			curHunks = nil
			return nil, nil
		}
		if !havePath {
			return nil, &ParseError{Reason: ErrMissingFileHeader}
		}
		p := &Patch{
			FilePath:        curPath,
			Hunks:           curHunks,
			EndsWithNewline: true,
		}
		curHunks = nil
		return p, nil
	}

	for _, raw := range lines {
		switch {
		case strings.HasPrefix(raw, "--- a/"):
			if p, err := finalizePatch(); err != nil {
				return nil, err
			} else if p != nil {
				out = append(out, *p)
			}
			curPath = strings.TrimSpace(strings.TrimPrefix(raw, "--- a/"))
			havePath = true

		case strings.HasPrefix(raw, "+++"):
			// Target-header line; ignored.

		case strings.HasPrefix(raw, "@@"):
			finalizeHunk()
			curHunk = &Hunk{}

		case strings.HasPrefix(raw, "+"):
			appendHunkLine(&curHunk, SigilAdd, raw[1:])

		case strings.HasPrefix(raw, "-"):
			appendHunkLine(&curHunk, SigilDelete, raw[1:])

		case strings.HasPrefix(raw, " "):
			appendHunkLine(&curHunk, SigilContext, raw[1:])

		case strings.HasPrefix(raw, `\`):
			endsWithoutNewline = true

		default:
			// Anything else is ignored.
		}
	}

	if p, err := finalizePatch(); err != nil {
		return nil, err
	} else if p != nil {
		out = append(out, *p)
	}

	if endsWithoutNewline {
		for i := range out {
			out[i].EndsWithNewline = false
		}
	}

	return out, nil
}

func appendHunkLine(cur **Hunk, sigil Sigil, text string) {
	if *cur == nil {
		*cur = &Hunk{}
	}
	(*cur).Lines = append((*cur).Lines, Line{Sigil: sigil, Text: text})
}
