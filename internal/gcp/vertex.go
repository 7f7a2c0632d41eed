package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- OCR Model Prompt ---
const OCRUserPrompt = `You are an OCR tool. Extract ALL the text visible on this image of a packaging/label page.

Rules:
- Transcribe the text EXACTLY as it appears (spelling, casing, punctuation)
- Include ALL languages present (French, English, etc.)
- Separate text blocks with line breaks
- Do NOT add any commentary, title or explanation - only the raw extracted text
- For visual separators (dots, bars, bullets), use the "/" character
- Include visible barcodes and numbers`

// --- Signature Classifier Prompt ---
const SignatureClassifierPrompt = `Analyze this image of one page of a print-ready packaging proof.
Is there a visible handwritten signature on this page?
Answer in strict JSON with this format:
{"found": true/false, "confidence": 0.0-1.0, "description": "short description"}
Answer only with the JSON, nothing else.`

// VertexClient holds the pre-configured generative models for our app.
type VertexClient struct {
	OCRModel       *genai.GenerativeModel
	SignatureModel *genai.GenerativeModel
	baseClient     *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the OCR model ---
	ocrModel := baseClient.GenerativeModel("gemini-2.0-flash")
	ocrModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0), // Verbatim transcription, no creativity.
	}

	// --- Configure the signature classifier model ---
	signatureModel := baseClient.GenerativeModel("gemini-2.0-flash")
	signatureModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. This is a critical setting for this model.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &VertexClient{
		OCRModel:       ocrModel,
		SignatureModel: signatureModel,
		baseClient:     baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
