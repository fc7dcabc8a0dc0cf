// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outbound

import "strings"

const fileScheme = "file://"

// IsLocalMedia reports whether a media reference names a local file.
func IsLocalMedia(media string) bool {
	for _, prefix := range []string{"/", "./", "../", fileScheme} {
		if strings.HasPrefix(media, prefix) {
			return true
		}
	}
	return false
}

// PartitionMedia splits media references into local file paths, with
// any file:// prefix removed, and remote links. Blank entries are
// dropped. Order is preserved within each group.
func PartitionMedia(media []string) (files, links []string) {
	for _, item := range media {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if IsLocalMedia(item) {
			files = append(files, strings.TrimPrefix(item, fileScheme))
			continue
		}
		links = append(links, item)
	}
	return files, links
}

// ComposeText joins trimmed text and one "Attachment: <url>" line per
// link, separated by a blank line when both are present.
func ComposeText(text string, links []string) string {
	text = strings.TrimSpace(text)
	lines := make([]string, 0, len(links))
	for _, link := range links {
		lines = append(lines, "Attachment: "+link)
	}
	block := strings.Join(lines, "\n")
	switch {
	case text != "" && block != "":
		return text + "\n\n" + block
	case text != "":
		return text
	default:
		return block
	}
}

// Payload is one reply block produced by the agent.
type Payload struct {
	Text string `json:"text,omitempty"`

	// MediaURLs takes precedence over MediaURL when non-empty.
	MediaURLs []string `json:"media_urls,omitempty"`
	MediaURL  string   `json:"media_url,omitempty"`
}

// Media returns the payload's media references.
func (p Payload) Media() []string {
	if len(p.MediaURLs) > 0 {
		return p.MediaURLs
	}
	if p.MediaURL != "" {
		return []string{p.MediaURL}
	}
	return nil
}
