package execution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atplabs/atp-gateway/internal/models"
)

// SimEngine synthesizes execution results without touching any external
// system. Result payloads are shaped by action type: refund confirmations for
// payment.process, record counts for database.update.
type SimEngine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimEngine() *SimEngine {
	return NewSeededSimEngine(time.Now().UnixNano())
}

func NewSeededSimEngine(seed int64) *SimEngine {
	return &SimEngine{rng: rand.New(rand.NewSource(seed))}
}

func (e *SimEngine) Execute(ctx context.Context, a *models.Action, approval models.ApprovalDecision, webhookURL string) (models.ExecutionResult, error) {
	e.mu.Lock()
	durSecs := e.rng.Float64()*3 + 0.5
	records := e.rng.Intn(100) + 1
	e.mu.Unlock()

	started := time.Now().UTC()
	completed := started.Add(time.Duration(durSecs * float64(time.Second)))

	result := map[string]interface{}{
		"execution_time": fmt.Sprintf("%.1fs", durSecs),
	}
	if webhookURL != "" {
		result["webhook_url"] = webhookURL
	}
	switch a.ActionType {
	case "payment.process":
		result["refund_id"] = "re_" + uuid.New().String()[:8]
		if amount, ok := a.Payload["amount"]; ok {
			result["amount_refunded"] = amount
		}
		if currency, ok := a.Payload["currency"]; ok {
			result["currency"] = currency
		}
	case "database.update":
		result["records_affected"] = records
	}

	return models.ExecutionResult{
		ActionID:    a.ActionID,
		StartedAt:   started,
		CompletedAt: &completed,
		Status:      models.ExecSuccess,
		Result:      result,
		SideEffects: []models.SideEffect{{
			Type:    "audit_log_created",
			Details: "Action execution logged",
		}},
	}, nil
}
