// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package linescan reads newline-delimited output from a subprocess
// pipe. Unlike bufio.Scanner it survives lines longer than its limit:
// an oversized line is skipped and reading continues with the next
// one.
package linescan

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Options holds the parameters for Scan.
type Options struct {
	// MaxLineSize bounds one line, excluding its terminator. Longer
	// lines are skipped.
	MaxLineSize int

	// Oversized, if set, is called with the length of each skipped
	// line.
	Oversized func(length int)
}

// Scan calls line for every line of r with the trailing "\n" or
// "\r\n" removed. The slice is only valid during the call. A final line
// without a terminator is still delivered. Scan returns nil at EOF and
// the read error otherwise.
func Scan(r io.Reader, options Options, line func([]byte)) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	var (
		pending    []byte
		discarding bool
		skipped    int
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		terminated := err == nil
		size := len(pending) + len(chunk)
		if terminated {
			size--
		}

		switch {
		case discarding:
			skipped += len(chunk)
		case size > options.MaxLineSize:
			discarding = true
			skipped = len(pending) + len(chunk)
			pending = pending[:0]
		default:
			pending = append(pending, chunk...)
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if discarding {
			if terminated {
				skipped--
			}
			if options.Oversized != nil {
				options.Oversized(skipped)
			}
			discarding = false
			skipped = 0
		} else if terminated || len(pending) > 0 {
			text := bytes.TrimSuffix(pending, []byte("\n"))
			line(bytes.TrimSuffix(text, []byte("\r")))
		}
		pending = pending[:0]

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
