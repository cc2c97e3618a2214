// Package diff renders the difference between two versions of a snapshot
// artifact as a unified patch.
package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of context lines around each hunk.
const DefaultContext = 3

// Options controls patch generation.
type Options struct {
	// Context is the number of context lines; 0 selects DefaultContext.
	Context int

	// MaxBytes caps the combined input size. Larger inputs yield a
	// placeholder patch. 0 means no limit.
	MaxBytes int
}

// Unified returns the unified patch turning a into b.
// Identical inputs produce an empty string.
func Unified(aName, bName string, a, b []byte, opt Options) (string, error) {
	if bytes.Equal(a, b) {
		return "", nil
	}
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (%d bytes)\n", aName, bName, len(a)+len(b)), nil
	}

	ctx := opt.Context
	if ctx <= 0 {
		ctx = DefaultContext
	}

	u := difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("diff %s %s: %w", aName, bName, err)
	}
	return s, nil
}

// splitLines splits content into lines, keeping the newline characters.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
