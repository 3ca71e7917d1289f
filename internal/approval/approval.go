// Package approval routes assessed actions to the right approvers.
package approval

import (
	"time"

	"github.com/atplabs/atp-gateway/internal/models"
)

// Deadline applied to every approval request.
const DeadlineWindow = 2 * time.Hour

// BuildRequest derives an approval request from a risk assessment. Low-risk
// actions are auto-approved by the system; medium goes to the on-call
// engineer; high risk escalates to the CTO team.
func BuildRequest(actionID string, assessment models.RiskAssessment) models.ApprovalRequest {
	req := models.ApprovalRequest{
		ActionID:  actionID,
		RiskScore: assessment.RiskScore,
		Deadline:  time.Now().UTC().Add(DeadlineWindow),
	}
	switch assessment.RiskLevel {
	case models.RiskLow:
		req.ApprovalType = models.ApprovalAuto
		req.Approvers = []string{"system"}
		req.Priority = "low"
		req.Reason = "Low risk action auto-approved"
	case models.RiskMedium:
		req.ApprovalType = models.ApprovalHumanRequired
		req.Approvers = []string{"role:on_call_engineer"}
		req.Priority = "normal"
		req.Reason = "Medium risk action requires human approval"
	case models.RiskHigh:
		req.ApprovalType = models.ApprovalHumanRequired
		req.Approvers = []string{"role:cto_team"}
		req.Priority = "high"
		req.Reason = "High risk action requires executive approval"
	default:
		req.ApprovalType = models.ApprovalHumanRequired
		req.Approvers = []string{"role:security_team"}
		req.Priority = "high"
		req.Reason = "Unknown risk level requires security team approval"
	}
	// Threshold rule: anything above the medium boundary needs a human even
	// if the level string says otherwise.
	if assessment.RiskScore > models.MediumRiskThreshold && req.ApprovalType == models.ApprovalAuto {
		req.ApprovalType = models.ApprovalHumanRequired
	}
	return req
}
