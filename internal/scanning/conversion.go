package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// normalizeContentType lower-cases a MIME type, defaulting to JPEG which is
// what phone cameras send
func normalizeContentType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		return "image/jpeg"
	}
	return mimeType
}

// toPNG converts a captured frame into PNG, which every recognizer accepts.
// PNG input is returned unchanged.
func toPNG(imageData []byte, contentType string) ([]byte, error) {
	mimeType := normalizeContentType(contentType)

	var img image.Image
	var err error
	switch {
	case mimeType == "application/pdf":
		img, err = pdfFirstPage(imageData)
	case isHEIC(imageData, mimeType):
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF frame: %w", err)
		}
	case mimeType == "image/png":
		return imageData, nil
	default:
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			err = fmt.Errorf("decoding frame (supported: JPEG, PNG, GIF, HEIC, PDF): %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfFirstPage renders the first page of a PDF, e.g. a scanned card
func pdfFirstPage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isHEIC checks the ftyp brand of the data and the MIME type for HEIC/HEIF
func isHEIC(data []byte, mimeType string) bool {
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
