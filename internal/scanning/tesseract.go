package scanning

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the Recognizer interface with a local Tesseract
// install. Each detected text block becomes one region.
type Tesseract struct {
	languages []string
}

// NewTesseract creates a new Tesseract Recognizer instance
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}
}

// Recognize reads the text blocks of a card frame
func (t *Tesseract) Recognize(imageData []byte, contentType string) ([]string, error) {
	pngData, err := toPNG(imageData, contentType)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting tesseract language: %w", err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("loading frame into tesseract: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("reading text blocks: %w", err)
	}

	fragments := make([]string, 0, len(boxes))
	for _, box := range boxes {
		if text := strings.TrimSpace(box.Word); text != "" {
			fragments = append(fragments, text)
		}
	}
	return fragments, nil
}

// Close is a no-op; a tesseract client lives for one Recognize call
func (t *Tesseract) Close() error {
	return nil
}
