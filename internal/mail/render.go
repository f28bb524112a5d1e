// ABOUTME: Reply body rendering for outbound mail
// ABOUTME: HTML passes through untouched; plain text renders as markdown

package mail

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

var markdown = goldmark.New()

// renderReplyHTML prepares engine output for the HTML reply channel. Engines
// are prompted to answer in HTML; anything that doesn't look like HTML is
// treated as markdown and converted, so plain-text answers still render.
func renderReplyHTML(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "<") {
		return body, nil
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("rendering reply body: %w", err)
	}
	return buf.String(), nil
}
