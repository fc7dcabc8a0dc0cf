// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outbound

import (
	"strings"
	"unicode"

	"github.com/bureau-foundation/telecli/lib/account"
)

// ChunkText splits text into pieces of at most limit runes. In
// ChunkLength mode a break falls on the last whitespace in the second
// half of the window when there is one, otherwise exactly at the
// limit. ChunkNewline mode packs whole lines into each chunk and only
// splits lines that are longer than the limit.
func ChunkText(text string, limit int, mode account.ChunkMode) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	if mode == account.ChunkNewline {
		return chunkByLine(text, limit)
	}
	return chunkByLength(text, limit)
}

func chunkByLength(text string, limit int) []string {
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = appendChunk(chunks, string(runes))
			break
		}
		cut := limit
		for index := limit; index > limit/2; index-- {
			if unicode.IsSpace(runes[index]) {
				cut = index
				break
			}
		}
		chunks = appendChunk(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

func chunkByLine(text string, limit int) []string {
	var chunks []string
	var current []string
	currentLength := 0
	flush := func() {
		if len(current) > 0 {
			chunks = appendChunk(chunks, strings.Join(current, "\n"))
		}
		current, currentLength = nil, 0
	}
	for _, line := range strings.Split(text, "\n") {
		lineLength := len([]rune(line))
		if lineLength > limit {
			flush()
			chunks = append(chunks, chunkByLength(line, limit)...)
			continue
		}
		separator := 0
		if len(current) > 0 {
			separator = 1
		}
		if currentLength+separator+lineLength > limit {
			flush()
			separator = 0
		}
		current = append(current, line)
		currentLength += separator + lineLength
	}
	flush()
	return chunks
}

func appendChunk(chunks []string, chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}
