package mailbox

import (
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
)

var reTags = regexp.MustCompile(`(?is)<[^>]+>`)

// extractText pulls a readable text body out of a raw RFC822 message,
// preferring text/plain parts and stripping tags from html-only mail.
func extractText(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// unparseable message: best effort on the raw bytes
		return htmlToText(string(raw))
	}
	defer mr.Close()

	var bestPlain, bestHTML string
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue // attachments are irrelevant here
		}

		ct, _, _ := h.ContentType()
		b, _ := io.ReadAll(io.LimitReader(p.Body, 6<<20))

		switch {
		case strings.HasPrefix(ct, "text/plain"):
			if len(b) > len(bestPlain) {
				bestPlain = string(b)
			}
		case strings.HasPrefix(ct, "text/html"):
			if len(b) > len(bestHTML) {
				bestHTML = string(b)
			}
		}
	}

	if bestPlain != "" {
		return strings.TrimSpace(bestPlain)
	}
	return htmlToText(bestHTML)
}

func htmlToText(s string) string {
	s = reTags.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
