package client

import (
	"time"

	"github.com/atplabs/atp-gateway/internal/models"
)

func ts(value string) time.Time {
	t, _ := time.Parse(time.RFC3339, value)
	return t
}

func tsPtr(value string) *time.Time {
	t := ts(value)
	return &t
}

// SeedActions returns the sample fixtures the simulated backend starts with:
// one action per lifecycle stage, covering a pending refund, an executed lead
// import, a verified bulk update, a rejected invoice adjustment and an
// in-flight service restart.
func SeedActions() []*models.Action {
	return []*models.Action{
		{
			ActionID:   "act_001",
			WorkflowID: "wf_customer_refund_v1",
			Initiator:  models.Initiator{Type: "scheduled", Source: "n8n_scheduler", SessionID: "session_001"},
			Timestamp:  ts("2024-12-25T10:30:00Z"),
			ActionType: "payment.process",
			Target:     models.Target{System: "stripe", Resource: "charges", Operation: "refund"},
			Payload: map[string]interface{}{
				"charge_id": "ch_123456",
				"amount":    2500,
				"currency":  "USD",
				"reason":    "customer_request",
			},
			Context: models.Context{
				BusinessReason:  "Customer requested refund within 30-day window",
				RelatedEntities: []string{"customer:c_789", "order:ord_001"},
				PriorActions:    []string{"email_received", "verified_order_date"},
				Service:         "stripe",
				Namespace:       "payments",
			},
			RiskAssessment: &models.RiskAssessment{
				ActionID:  "act_001",
				Timestamp: ts("2024-12-25T10:30:01Z"),
				RiskScore: 0.42,
				RiskLevel: models.RiskMedium,
				RiskFactors: []models.RiskFactor{
					{Factor: "amount_exceeds_threshold", Severity: "medium", Weight: 0.5, Details: "Refund amount $2,500 exceeds auto-approval threshold of $1,000"},
					{Factor: "customer_account_age", Severity: "low", Weight: 0.2, Details: "Customer account created 2 years ago - good standing"},
				},
				SimilarActions: models.SimilarActions{Past30Days: 147, SuccessRate: 0.994, AverageCompletionTime: "2.3s"},
				Recommendation: models.RecommendHumanReview,
				Confidence:     0.85,
			},
			ApprovalRequest: &models.ApprovalRequest{
				ActionID:     "act_001",
				RiskScore:    0.42,
				ApprovalType: models.ApprovalHumanRequired,
				Approvers:    []string{"role:finance_manager"},
				Deadline:     ts("2024-12-25T12:30:00Z"),
				Priority:     "normal",
			},
		},
		{
			ActionID:   "act_002",
			WorkflowID: "wf_lead_import_v2",
			Initiator:  models.Initiator{Type: "human", Source: "user_456", SessionID: "session_002"},
			Timestamp:  ts("2024-12-24T14:20:00Z"),
			ActionType: "database.update",
			Target:     models.Target{System: "salesforce", Resource: "leads", Operation: "create"},
			Payload: map[string]interface{}{
				"leads_count": 25,
				"source":      "conference_attendees",
			},
			Context: models.Context{
				BusinessReason:  "Import conference attendees as new leads",
				RelatedEntities: []string{"event:conf_2024"},
				PriorActions:    []string{"csv_uploaded", "validation_passed"},
				Service:         "salesforce",
				Namespace:       "crm",
			},
			RiskAssessment: &models.RiskAssessment{
				ActionID:  "act_002",
				Timestamp: ts("2024-12-24T14:20:05Z"),
				RiskScore: 0.12,
				RiskLevel: models.RiskLow,
				RiskFactors: []models.RiskFactor{
					{Factor: "standard_operation", Severity: "low", Weight: 0.1, Details: "Routine lead import from verified source"},
					{Factor: "data_validation_passed", Severity: "low", Weight: 0.05, Details: "All records validated against schema"},
				},
				SimilarActions: models.SimilarActions{Past30Days: 89, SuccessRate: 0.988, AverageCompletionTime: "1.8s"},
				Recommendation: models.RecommendAutoApprove,
				Confidence:     0.92,
			},
			ApprovalRequest: &models.ApprovalRequest{
				ActionID:     "act_002",
				RiskScore:    0.12,
				ApprovalType: models.ApprovalHumanRequired,
				Approvers:    []string{"role:sales_lead"},
				Deadline:     ts("2024-12-24T15:20:00Z"),
				Priority:     "normal",
			},
			ApprovalDecision: &models.ApprovalDecision{
				ActionID:  "act_002",
				Decision:  models.DecisionApproved,
				Approver:  "user_789",
				Timestamp: ts("2024-12-24T14:22:00Z"),
				Reason:    "Standard lead import, source verified",
			},
			ExecutionResult: &models.ExecutionResult{
				ActionID:    "act_002",
				StartedAt:   ts("2024-12-24T14:25:00Z"),
				CompletedAt: tsPtr("2024-12-24T14:25:03Z"),
				Status:      models.ExecSuccess,
				Result: map[string]interface{}{
					"records_created": 25,
					"records_failed":  0,
					"execution_time":  "3.2s",
				},
				SideEffects: []models.SideEffect{{Type: "email_sent", Details: "Notification sent to sales team"}},
			},
		},
		{
			ActionID:   "act_003",
			WorkflowID: "wf_data_cleanup_v1",
			Initiator:  models.Initiator{Type: "ai_agent", Source: "agent_gpt4", SessionID: "session_abc123"},
			Timestamp:  ts("2024-12-23T09:15:00Z"),
			ActionType: "api.call",
			Target:     models.Target{System: "hubspot", Resource: "contacts", Operation: "update"},
			Payload: map[string]interface{}{
				"contacts_count": 150,
				"action":         "update_tags",
				"tag":            "event_attendee_2024",
			},
			Context: models.Context{
				BusinessReason:  "Update contact tags based on event attendance",
				RelatedEntities: []string{"event:webinar_2024"},
				PriorActions:    []string{"attendee_list_generated"},
				Service:         "hubspot",
				Namespace:       "marketing",
			},
			RiskAssessment: &models.RiskAssessment{
				ActionID:  "act_003",
				Timestamp: ts("2024-12-23T09:15:02Z"),
				RiskScore: 0.08,
				RiskLevel: models.RiskLow,
				RiskFactors: []models.RiskFactor{
					{Factor: "ai_initiated_action", Severity: "low", Weight: 0.15, Details: "Action initiated by AI agent with approval workflow"},
					{Factor: "bulk_update_operation", Severity: "low", Weight: 0.08, Details: "Updating 150 contacts - within normal batch size"},
				},
				SimilarActions: models.SimilarActions{Past30Days: 234, SuccessRate: 0.996, AverageCompletionTime: "2.1s"},
				Recommendation: models.RecommendAutoApprove,
				Confidence:     0.95,
			},
			ApprovalRequest: &models.ApprovalRequest{
				ActionID:     "act_003",
				RiskScore:    0.08,
				ApprovalType: models.ApprovalHumanRequired,
				Approvers:    []string{"role:marketing_ops"},
				Deadline:     ts("2024-12-23T10:15:00Z"),
				Priority:     "low",
			},
			ApprovalDecision: &models.ApprovalDecision{
				ActionID:  "act_003",
				Decision:  models.DecisionApproved,
				Approver:  "user_101",
				Timestamp: ts("2024-12-23T09:20:00Z"),
				Reason:    "Standard tag update operation",
			},
			ExecutionResult: &models.ExecutionResult{
				ActionID:    "act_003",
				StartedAt:   ts("2024-12-23T09:21:00Z"),
				CompletedAt: tsPtr("2024-12-23T09:21:02Z"),
				Status:      models.ExecSuccess,
				Result: map[string]interface{}{
					"contacts_updated": 148,
					"contacts_failed":  2,
					"execution_time":   "2.3s",
				},
				SideEffects: []models.SideEffect{
					{Type: "database_updated", Details: "Contact tags updated in CRM"},
					{Type: "audit_log_created", Details: "Action logged in audit trail"},
				},
			},
			VerificationResult: &models.VerificationResult{
				ActionID:      "act_003",
				Timestamp:     ts("2024-12-23T09:21:05Z"),
				OverallStatus: models.Verified,
				Checks: []models.VerificationCheck{
					{Type: "state_consistency", Status: "pass", Details: "Contact tags match expected state"},
					{Type: "downstream_effects", Status: "pass", Details: "All downstream systems updated"},
				},
				Confidence: 0.97,
			},
		},
		{
			ActionID:   "act_004",
			WorkflowID: "wf_finance_adj_v1",
			Initiator:  models.Initiator{Type: "webhook", Source: "invoice_system", SessionID: "session_004"},
			Timestamp:  ts("2024-12-22T16:45:00Z"),
			ActionType: "database.update",
			Target:     models.Target{System: "quickbooks", Resource: "invoices", Operation: "adjustment"},
			Payload: map[string]interface{}{
				"invoice_id":        "inv_789101",
				"adjustment_amount": -500,
				"reason":            "payment_dispute",
			},
			Context: models.Context{
				BusinessReason:  "Automatic adjustment for disputed invoice",
				RelatedEntities: []string{"invoice:inv_789101", "customer:c_555"},
				PriorActions:    []string{"dispute_received", "review_scheduled"},
				Service:         "quickbooks",
				Namespace:       "finance",
			},
			RiskAssessment: &models.RiskAssessment{
				ActionID:  "act_004",
				Timestamp: ts("2024-12-22T16:45:03Z"),
				RiskScore: 0.67,
				RiskLevel: models.RiskHigh,
				RiskFactors: []models.RiskFactor{
					{Factor: "high_financial_impact", Severity: "high", Weight: 0.7, Details: "Adjustment amount exceeds standard authority limit"},
					{Factor: "disputed_invoice", Severity: "medium", Weight: 0.4, Details: "Invoice currently under dispute investigation"},
					{Factor: "requires_multi_approval", Severity: "high", Weight: 0.6, Details: "Action requires both finance manager and controller approval"},
				},
				SimilarActions: models.SimilarActions{Past30Days: 12, SuccessRate: 0.833, AverageCompletionTime: "45m"},
				Recommendation: models.RecommendHumanReview,
				Confidence:     0.88,
			},
			ApprovalRequest: &models.ApprovalRequest{
				ActionID:     "act_004",
				RiskScore:    0.67,
				ApprovalType: models.ApprovalHumanRequired,
				Approvers:    []string{"role:finance_manager", "role:controller"},
				Deadline:     ts("2024-12-22T18:45:00Z"),
				Priority:     "high",
			},
			ApprovalDecision: &models.ApprovalDecision{
				ActionID:  "act_004",
				Decision:  models.DecisionRejected,
				Approver:  "user_202",
				Timestamp: ts("2024-12-22T16:50:00Z"),
				Reason:    "Adjustment exceeds authority limit, requires VP approval",
			},
		},
		{
			ActionID:   "act_005",
			WorkflowID: "wf_system_maintenance",
			Initiator:  models.Initiator{Type: "scheduled", Source: "cron_job", SessionID: "session_005"},
			Timestamp:  ts("2024-12-25T10:00:00Z"),
			ActionType: "system.command",
			Target:     models.Target{System: "aws", Resource: "ec2", Operation: "restart_service"},
			Payload: map[string]interface{}{
				"service":     "api_gateway",
				"instance_id": "i-abc123def456",
			},
			Context: models.Context{
				BusinessReason:  "Scheduled maintenance window",
				RelatedEntities: []string{"service:api_gateway"},
				PriorActions:    []string{"health_check_failed", "alert_sent"},
				Service:         "aws",
				Namespace:       "infrastructure",
			},
			RiskAssessment: &models.RiskAssessment{
				ActionID:  "act_005",
				Timestamp: ts("2024-12-25T10:00:02Z"),
				RiskScore: 0.31,
				RiskLevel: models.RiskMedium,
				RiskFactors: []models.RiskFactor{
					{Factor: "service_downtime", Severity: "medium", Weight: 0.4, Details: "Expected 2-3 minutes downtime during restart"},
					{Factor: "maintenance_window", Severity: "low", Weight: 0.15, Details: "Action scheduled during approved maintenance window"},
					{Factor: "backup_verified", Severity: "low", Weight: 0.1, Details: "System backup completed and verified"},
				},
				SimilarActions: models.SimilarActions{Past30Days: 8, SuccessRate: 0.975, AverageCompletionTime: "3.5m"},
				Recommendation: models.RecommendHumanReview,
				Confidence:     0.80,
			},
			ApprovalRequest: &models.ApprovalRequest{
				ActionID:     "act_005",
				RiskScore:    0.31,
				ApprovalType: models.ApprovalHumanRequired,
				Approvers:    []string{"role:devops"},
				Deadline:     ts("2024-12-25T10:30:00Z"),
				Priority:     "high",
			},
			ApprovalDecision: &models.ApprovalDecision{
				ActionID:  "act_005",
				Decision:  models.DecisionApproved,
				Approver:  "user_303",
				Timestamp: ts("2024-12-25T10:00:30Z"),
				Reason:    "Within maintenance window, backup verified",
			},
			ExecutionResult: &models.ExecutionResult{
				ActionID:  "act_005",
				StartedAt: ts("2024-12-25T10:01:00Z"),
				Status:    models.ExecPartial,
				Result: map[string]interface{}{
					"status":   "in_progress",
					"progress": "65%",
				},
				SideEffects: []models.SideEffect{{Type: "notification_sent", Details: "Maintenance notification sent to team"}},
			},
		},
	}
}
