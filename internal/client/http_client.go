package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atplabs/atp-gateway/internal/models"
	"github.com/atplabs/atp-gateway/internal/service"
)

// HTTPClient talks to a real gateway over its JSON surface.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base url required")
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *HTTPClient) GetHealth(ctx context.Context) (service.Health, error) {
	var out service.Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *HTTPClient) GetActions(ctx context.Context) ([]*models.Action, error) {
	var out []*models.Action
	if err := c.do(ctx, http.MethodGet, "/actions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) DeclareAction(ctx context.Context, req service.DeclareRequest) (*models.Action, error) {
	var out models.Action
	if err := c.do(ctx, http.MethodPost, "/actions/declare", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ApproveAction(ctx context.Context, id, approver, reason string) (*Result, error) {
	body := map[string]string{"approver": approver, "reason": reason, "action_id": id}
	var out Result
	if err := c.do(ctx, http.MethodPost, "/actions/"+id+"/approve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RejectAction(ctx context.Context, id, approver, reason string) (*Result, error) {
	body := map[string]string{"approver": approver, "reason": reason, "action_id": id}
	var out Result
	if err := c.do(ctx, http.MethodPost, "/actions/"+id+"/reject", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ExecuteAction(ctx context.Context, id, webhookURL string) (*Result, error) {
	body := map[string]string{"n8n_webhook_url": webhookURL}
	var out Result
	if err := c.do(ctx, http.MethodPost, "/actions/"+id+"/execute", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyAction(ctx context.Context, id string) (*Result, error) {
	var out Result
	if err := c.do(ctx, http.MethodPost, "/actions/"+id+"/verify", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RollbackAction(ctx context.Context, id, reason string) (*Result, error) {
	body := map[string]string{"reason": reason}
	var out Result
	if err := c.do(ctx, http.MethodPost, "/actions/"+id+"/rollback", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetAuditTrail(ctx context.Context, id string) (*AuditTrail, error) {
	var out AuditTrail
	if err := c.do(ctx, http.MethodGet, "/actions/"+id+"/audit-trail", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetExplanation(ctx context.Context, id string) (*service.Explanation, error) {
	var out service.Explanation
	if err := c.do(ctx, http.MethodGet, "/actions/"+id+"/explain", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		if decErr := json.NewDecoder(resp.Body).Decode(&apiErr); decErr == nil && apiErr.Error != "" {
			return fmt.Errorf("gateway: %s", apiErr.Error)
		}
		return fmt.Errorf("gateway: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
