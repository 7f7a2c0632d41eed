// Package render consumes the external rendering service that turns a
// paged document into per-page raster images and raw text.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/batflow/batverify/internal/apperr"
	"github.com/batflow/batverify/internal/gcp"
	"github.com/batflow/batverify/internal/models"
)

// ProgressFunc reports rendering progress as (pageIndex, totalPages).
type ProgressFunc func(pageIndex, totalPages int)

// Renderer turns document bytes into an ordered sequence of pages.
type Renderer interface {
	Render(ctx context.Context, docBytes []byte, progress ProgressFunc) ([]models.Page, error)
}

// Client calls the rendering service over HTTP. The service accepts the
// raw document and answers with one JSON entry per page: page number,
// dimensions, base64 PNG raster and extracted text.
type Client struct {
	renderURL  string
	httpClient *http.Client
}

// NewClient builds a render client; RENDER_SERVICE_URL overrides the
// default endpoint.
func NewClient() *Client {
	return &Client{
		renderURL:  gcp.GetEnv("RENDER_SERVICE_URL", "http://localhost:8090/render"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// NewClientForURL is used by tests to point the client at a fake service.
func NewClientForURL(renderURL string) *Client {
	return &Client{
		renderURL:  renderURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type renderedPage struct {
	PageNumber int    `json:"pageNumber"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ImagePNG   string `json:"imagePng"` // base64
	Text       string `json:"text"`
}

// Render submits the document and decodes every returned page. A corrupt
// or unreadable source is a render error: the comparison cannot proceed
// for that document.
func (c *Client) Render(ctx context.Context, docBytes []byte, progress ProgressFunc) ([]models.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.renderURL, bytes.NewReader(docBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.Render, err, "build render request")
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Render, err, "render service call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.New(apperr.Render, "render service returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Pages []renderedPage `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperr.Wrap(apperr.Render, err, "decode render response")
	}

	pages := make([]models.Page, 0, len(payload.Pages))
	for i, rp := range payload.Pages {
		if progress != nil {
			progress(i, len(payload.Pages))
		}
		img, err := decodePNG(rp.ImagePNG)
		if err != nil {
			return nil, apperr.Wrap(apperr.Render, err, "decode page %d raster", rp.PageNumber)
		}
		page := models.Page{
			PageNumber: rp.PageNumber,
			Image:      img,
			Text:       rp.Text,
			Width:      rp.Width,
			Height:     rp.Height,
		}
		if img != nil {
			page.Width = img.Bounds().Dx()
			page.Height = img.Bounds().Dy()
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func decodePNG(b64 string) (*image.RGBA, error) {
	if b64 == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("png decode: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, img.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}
