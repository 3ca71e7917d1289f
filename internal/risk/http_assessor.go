package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/atplabs/atp-gateway/internal/models"
)

// HTTPAssessorConfig configures the remote risk engine client.
type HTTPAssessorConfig struct {
	BaseURL    string
	Path       string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client

	// Fallback is consulted when the remote engine is unreachable or returns
	// garbage. If nil the error is returned instead.
	Fallback Assessor
}

// HTTPAssessor delegates scoring to an external risk engine over HTTP.
type HTTPAssessor struct {
	baseURL  string
	path     string
	client   *http.Client
	timeout  time.Duration
	retries  int
	fallback Assessor
}

func NewHTTPAssessor(cfg HTTPAssessorConfig) (*HTTPAssessor, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("risk engine base url required")
	}
	path := cfg.Path
	if path == "" {
		path = "/v1/assess"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &HTTPAssessor{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		path:     path,
		client:   client,
		timeout:  timeout,
		retries:  retries,
		fallback: cfg.Fallback,
	}, nil
}

func (h *HTTPAssessor) Assess(ctx context.Context, a *models.Action) (models.RiskAssessment, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("risk marshal action: %w", err)
	}

	attempts := h.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return models.RiskAssessment{}, ctx.Err()
		}
		reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, h.baseURL+h.path, bytes.NewReader(body))
		if err != nil {
			cancel()
			return models.RiskAssessment{}, fmt.Errorf("risk build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := h.client.Do(req)
		cancel()
		if err != nil {
			lastErr = err
		} else {
			assessment, parseErr := decodeAssessment(resp, a.ActionID)
			resp.Body.Close()
			if parseErr == nil {
				return assessment, nil
			}
			lastErr = parseErr
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	if h.fallback != nil {
		log.Printf("[risk] remote engine failed, falling back to rules: %v", lastErr)
		return h.fallback.Assess(ctx, a)
	}
	return models.RiskAssessment{}, fmt.Errorf("risk assess: %w", lastErr)
}

func decodeAssessment(resp *http.Response, actionID string) (models.RiskAssessment, error) {
	if resp.StatusCode >= 500 {
		return models.RiskAssessment{}, fmt.Errorf("risk engine unavailable: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return models.RiskAssessment{}, fmt.Errorf("risk engine rejected request: %s", resp.Status)
	}
	var assessment models.RiskAssessment
	if err := json.NewDecoder(resp.Body).Decode(&assessment); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("risk decode response: %w", err)
	}
	if assessment.RiskScore < 0 || assessment.RiskScore > 1 {
		return models.RiskAssessment{}, fmt.Errorf("risk score %v out of range", assessment.RiskScore)
	}
	assessment.ActionID = actionID
	if assessment.Timestamp.IsZero() {
		assessment.Timestamp = time.Now().UTC()
	}
	if assessment.RiskLevel == "" {
		assessment.RiskLevel = models.RiskLevelFor(assessment.RiskScore)
	}
	return assessment, nil
}
