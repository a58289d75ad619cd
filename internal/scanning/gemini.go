package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiTimeout = 30 * time.Second

var errNoGeminiText = errors.New("no text in gemini response")

// Gemini reads card frames with a Google Gemini vision model
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(transcribeInstruction)},
	}

	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Recognize(imageData []byte, contentType string) ([]string, error) {
	pngData, err := toPNG(imageData, contentType)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), geminiTimeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", pngData), genai.Text(fragmentPrompt))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	text, err := candidateText(resp)
	if err != nil {
		return nil, err
	}
	fragments, err := parseFragmentsJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing text regions: %w", err)
	}
	return fragments, nil
}

// candidateText joins the text parts of the first candidate that has any.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errNoGeminiText
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range c.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if strings.TrimSpace(b.String()) != "" {
			return b.String(), nil
		}
	}
	return "", errNoGeminiText
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
