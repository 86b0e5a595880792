package utils

import (
	"path"
	"regexp"
	"strings"
)

const (
	maxFilenameLength = 200
	pdfExtension      = ".pdf"
	defaultPDFName    = "book.pdf"
)

var (
	// Characters invalid in filenames on most filesystems or unsafe in headers
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFilename strips directory components and characters that are
// invalid in filenames or would break a Content-Disposition header.
// The result is never empty.
func SanitizeFilename(filename string) string {
	// Browsers on Windows may send the full client path.
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if filename == "." || filename == "/" {
		filename = ""
	}

	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)

	// Limit length (most filesystems support 255, but leave room for extension)
	if len(filename) > maxFilenameLength {
		filename = strings.TrimSpace(filename[:maxFilenameLength])
	}

	if filename == "" {
		filename = "Untitled"
	}
	return filename
}

// PDFFilename sanitizes an uploaded document name and makes sure it ends in .pdf.
func PDFFilename(filename string) string {
	if strings.TrimSpace(filename) == "" {
		return defaultPDFName
	}
	name := SanitizeFilename(filename)
	if !strings.EqualFold(path.Ext(name), pdfExtension) {
		name += pdfExtension
	}
	return name
}
