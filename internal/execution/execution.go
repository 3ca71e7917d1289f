// Package execution carries out approved actions against their target
// systems. The webhook engine delegates to an n8n workflow; the sim engine
// synthesizes results for the simulated backend.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atplabs/atp-gateway/internal/models"
)

// Engine performs an approved action and reports what happened. Failures are
// captured inside the result rather than returned as errors so the gateway
// can attach them for auditing.
type Engine interface {
	Execute(ctx context.Context, a *models.Action, approval models.ApprovalDecision, webhookURL string) (models.ExecutionResult, error)
}

// WebhookEngine executes actions by POSTing the ATP envelope to an n8n
// webhook.
type WebhookEngine struct {
	client *http.Client
}

func NewWebhookEngine(client *http.Client) *WebhookEngine {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookEngine{client: client}
}

func (e *WebhookEngine) Execute(ctx context.Context, a *models.Action, approval models.ApprovalDecision, webhookURL string) (models.ExecutionResult, error) {
	if webhookURL == "" {
		return models.ExecutionResult{}, fmt.Errorf("webhook url required")
	}
	started := time.Now().UTC()

	envelope := map[string]interface{}{
		"atp_action_id": a.ActionID,
		"target":        a.Target,
		"payload":       a.Payload,
		"context":       a.Context,
		"approval": map[string]interface{}{
			"approver":  approval.Approver,
			"timestamp": approval.Timestamp,
		},
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return models.ExecutionResult{}, fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return models.ExecutionResult{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		completed := time.Now().UTC()
		return models.ExecutionResult{
			ActionID:    a.ActionID,
			StartedAt:   started,
			CompletedAt: &completed,
			Status:      models.ExecFailure,
			Result:      map[string]interface{}{"error": err.Error()},
		}, nil
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		result = map[string]interface{}{"raw_status": resp.Status}
	}

	status := models.ExecSuccess
	if resp.StatusCode != http.StatusOK {
		status = models.ExecFailure
	}
	completed := time.Now().UTC()
	return models.ExecutionResult{
		ActionID:    a.ActionID,
		StartedAt:   started,
		CompletedAt: &completed,
		Status:      status,
		Result:      result,
		SideEffects: []models.SideEffect{{
			Type:    "n8n_workflow_executed",
			Details: fmt.Sprintf("workflow %s", a.WorkflowID),
		}},
	}, nil
}
