// Package documents extracts plain text from uploaded and ingested files.
package documents

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyText is returned when a document yields no readable text.
var ErrEmptyText = errors.New("document contains no extractable text")

// ExtractPDF reads every page of a PDF and returns its cleaned text.
func ExtractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return Clean(string(raw))
}

// Clean strips NUL bytes and surrounding whitespace and rejects empty text.
func Clean(text string) (string, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// Supported reports whether ExtractFile can read path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// ExtractFile reads a PDF or a plain text file from disk.
func ExtractFile(path string) (string, error) {
	if !Supported(path) {
		return "", fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Extract(path, data)
}

// Extract returns the text of an uploaded file. Plain text and markdown are
// read as is; anything else is parsed as a PDF.
func Extract(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return Clean(string(data))
	default:
		return ExtractPDF(data)
	}
}
