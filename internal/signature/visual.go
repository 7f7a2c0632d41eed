package signature

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/batflow/batverify/internal/gcp"
	"github.com/batflow/batverify/internal/models"
)

// PageClassifier decides whether one page image shows a handwritten
// signature. A classifier failure is reported inside the returned finding,
// never as an error, so one bad page cannot abort the pipeline.
type PageClassifier interface {
	ClassifyPage(ctx context.Context, page models.Page) models.HandwrittenSignaturePage
}

// VertexClassifier asks a vision model with a constrained JSON prompt.
type VertexClassifier struct {
	client *gcp.VertexClient
}

func NewVertexClassifier(client *gcp.VertexClient) *VertexClassifier {
	return &VertexClassifier{client: client}
}

func (c *VertexClassifier) ClassifyPage(ctx context.Context, page models.Page) models.HandwrittenSignaturePage {
	finding := models.HandwrittenSignaturePage{PageNumber: page.PageNumber}
	if page.Image == nil {
		finding.Description = "no page image available"
		return finding
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, page.Image); err != nil {
		finding.Description = fmt.Sprintf("page image encoding failed: %v", err)
		return finding
	}

	resp, err := c.client.SignatureModel.GenerateContent(ctx,
		genai.ImageData("png", buf.Bytes()),
		genai.Text(gcp.SignatureClassifierPrompt),
	)
	if err != nil {
		finding.Description = fmt.Sprintf("classifier call failed: %v", err)
		return finding
	}

	return parseFinding(page.PageNumber, extractText(resp))
}

// extractText robustly gets the raw text content from the model response.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// classifierResponse is the strict JSON shape the prompt demands.
type classifierResponse struct {
	Found       bool    `json:"found"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// parseFinding decodes model output defensively. The text is not
// guaranteed to be well-formed JSON: the first balanced object substring
// is located and decoded, and anything unparsable degrades to the fixed
// found=false, confidence=0 sentinel.
func parseFinding(pageNumber int, text string) models.HandwrittenSignaturePage {
	obj, ok := firstJSONObject(text)
	if !ok {
		return models.HandwrittenSignaturePage{
			PageNumber:  pageNumber,
			Description: "unparsable classifier response",
		}
	}

	var parsed classifierResponse
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return models.HandwrittenSignaturePage{
			PageNumber:  pageNumber,
			Description: "unparsable classifier response",
		}
	}

	confidence := parsed.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0
	}
	return models.HandwrittenSignaturePage{
		PageNumber:  pageNumber,
		Found:       parsed.Found,
		Confidence:  confidence,
		Description: parsed.Description,
	}
}

// firstJSONObject returns the first balanced {...} substring, tracking
// strings and escapes so braces inside values don't misbalance the scan.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
