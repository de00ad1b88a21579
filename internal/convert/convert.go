// Package convert turns uploaded files into heading-structured markdown so
// they can flow through the regular detect/parse/store path.
package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Converter produces markdown text from one source file format.
type Converter interface {
	Convert(r io.Reader, filename string) (string, error)
}

// SupportedExtensions lists file extensions the ingest path can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate converter for a filename.
func ForFile(filename string) (Converter, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown", ".txt":
		return &TextConverter{}, nil
	case ".csv":
		return &CSVConverter{}, nil
	case ".html", ".htm":
		return &HTMLConverter{}, nil
	case ".pdf":
		return &PDFConverter{}, nil
	case ".docx":
		return &DOCXConverter{}, nil
	}
	return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// TextConverter passes markdown and plain text through untouched; both are
// native inputs for the decomposer.
type TextConverter struct{}

func (c *TextConverter) Convert(r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// heading renders one markdown heading line.
func heading(level int, title string) string {
	return strings.Repeat("#", level) + " " + strings.TrimSpace(title) + "\n"
}
