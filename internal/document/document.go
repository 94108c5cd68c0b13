// Package document prepares raw uploads for the extraction strategies.
package document

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DetectMIME returns the declared type when it is specific, otherwise it
// sniffs the content.
func DetectMIME(data []byte, declared string) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil &&
			mediaType != "application/octet-stream" {
			if mediaType == "image/jpg" {
				return "image/jpeg"
			}
			return mediaType
		}
	}
	if len(data) == 0 {
		return ""
	}
	sniffed := http.DetectContentType(data)
	mediaType, _, err := mime.ParseMediaType(sniffed)
	if err != nil {
		return sniffed
	}
	return mediaType
}

// IsText reports whether the MIME type carries plain text.
func IsText(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

// PDFText returns the text layer of a PDF, one line per text row and pages
// separated by blank lines. A PDF without a text layer yields "".
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}
			line := strings.TrimSpace(strings.Join(words, " "))
			if line != "" {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}
