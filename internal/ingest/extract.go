package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractFile reads a source file and returns its plain text. PDF files go
// through text extraction; anything else is treated as UTF-8 text.
func ExtractFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", path, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		// Pages with broken font tables are skipped, not fatal.
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("pdf %s: no extractable text", path)
	}
	return sb.String(), nil
}
