// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal holds the low-level escape-sequence handling behind the
// interactive connect flow, which erases credential prompts once they have
// been answered.
package terminal

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/term"
)

// ClearPreviousLines erases the terminal lines occupied by a just-answered
// prompt. textLength is the prompt text plus the typed answer; the number of
// lines it wrapped into is derived from the current terminal width, falling
// back to 80 columns when the width cannot be determined. One extra line is
// cleared for the newline the Enter key produced.
func ClearPreviousLines(textLength int) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	lines := int(math.Ceil(float64(textLength) / float64(width)))
	if lines < 1 {
		lines = 1
	}
	// After Enter the cursor sits on a fresh empty line below the input.
	lines++

	for i := 0; i < lines; i++ {
		fmt.Print("\r\x1b[2K")
		if i < lines-1 {
			fmt.Print("\x1b[1A")
		}
	}
}
