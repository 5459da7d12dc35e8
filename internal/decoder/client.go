// Package decoder talks to the external QR decode and reconstruction service.
package decoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/scan"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

const maxResponseBytes = 1 << 20

// Client wraps interactions with the decode service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a new client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type scanRequest struct {
	Image string `json:"image"`
}

type scanResponse struct {
	Success       bool     `json:"success"`
	Data          string   `json:"data"`
	Reconstructed bool     `json:"reconstructed"`
	Confidence    *float64 `json:"confidence"`
	Error         string   `json:"error"`
}

// Health mirrors the service's health payload.
type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Decode submits the image and classifies the service's answer.
func (c *Client) Decode(ctx context.Context, image []byte) (scan.DecodeOutcome, error) {
	body, err := json.Marshal(scanRequest{Image: dataURL(image)})
	if err != nil {
		return scan.DecodeOutcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scan-qr", bytes.NewReader(body))
	if err != nil {
		return scan.DecodeOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return scan.DecodeOutcome{}, fmt.Errorf("decoder: %w: %v", shared.ErrCollaboratorUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return scan.DecodeOutcome{}, fmt.Errorf("decoder: %w: status %d", shared.ErrCollaboratorUnavailable, resp.StatusCode)
	}

	var payload scanResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return scan.DecodeOutcome{}, fmt.Errorf("decoder: %w: status %d with unreadable body: %v", shared.ErrCollaboratorUnavailable, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusBadRequest {
		return scan.DecodeOutcome{}, fmt.Errorf("decoder: %w: status %d: %s", shared.ErrCollaboratorUnavailable, resp.StatusCode, payload.Error)
	}

	// A 400 that neither decoded nor attempted reconstruction means the service
	// could not run its pipeline, e.g. the reconstruction model is not loaded.
	if resp.StatusCode == http.StatusBadRequest && !payload.Success && !payload.Reconstructed && payload.Error != "" {
		return scan.DecodeOutcome{}, fmt.Errorf("decoder: %w: %s", shared.ErrCollaboratorUnavailable, payload.Error)
	}

	outcome := classify(payload)
	if payload.Error != "" {
		c.logger.Debug("decoder reported", slog.String("outcome", outcome.Kind.String()), slog.String("detail", payload.Error))
	}
	return outcome, nil
}

func classify(p scanResponse) scan.DecodeOutcome {
	switch {
	case p.Success && !p.Reconstructed:
		return scan.DecodeOutcome{Kind: scan.OutcomeDirect, FittingID: strings.TrimSpace(p.Data)}
	case p.Success && p.Reconstructed:
		confidence := 0.0
		if p.Confidence != nil {
			confidence = clamp(*p.Confidence)
		}
		return scan.DecodeOutcome{Kind: scan.OutcomeReconstructed, FittingID: strings.TrimSpace(p.Data), Confidence: confidence}
	case p.Reconstructed:
		return scan.DecodeOutcome{Kind: scan.OutcomeReconstructionFailed}
	default:
		return scan.DecodeOutcome{Kind: scan.OutcomeNoCode}
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Ping checks that the service is up and its reconstruction model is loaded.
func (c *Client) Ping(ctx context.Context) error {
	h, err := c.Health(ctx)
	if err != nil {
		return err
	}
	if !h.ModelLoaded {
		return fmt.Errorf("decoder: %w: reconstruction model not loaded", shared.ErrCollaboratorUnavailable)
	}
	return nil
}

// Health fetches the service health document.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("decoder: %w: %v", shared.ErrCollaboratorUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return Health{}, fmt.Errorf("decoder: %w: health status %d", shared.ErrCollaboratorUnavailable, resp.StatusCode)
	}
	var h Health
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decoder: decode health: %w", err)
	}
	return h, nil
}

func dataURL(image []byte) string {
	return "data:" + mimetype.Detect(image).String() + ";base64," + base64.StdEncoding.EncodeToString(image)
}

var _ scan.Decoder = (*Client)(nil)
