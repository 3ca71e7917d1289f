// Package risk scores declared actions and produces the recommendation that
// drives approval routing.
package risk

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/atplabs/atp-gateway/internal/models"
)

// Assessor evaluates the risk of executing a declared action.
type Assessor interface {
	Assess(ctx context.Context, a *models.Action) (models.RiskAssessment, error)
}

// RuleAssessor is the built-in rule-based scorer. It is the assessor of the
// simulated backend and the fallback when a remote risk engine is unreachable.
type RuleAssessor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRuleAssessor returns a rule assessor seeded from the clock.
func NewRuleAssessor() *RuleAssessor {
	return NewSeededRuleAssessor(time.Now().UnixNano())
}

// NewSeededRuleAssessor returns a rule assessor with a fixed seed so tests
// get reproducible scores.
func NewSeededRuleAssessor(seed int64) *RuleAssessor {
	return &RuleAssessor{rng: rand.New(rand.NewSource(seed))}
}

func (r *RuleAssessor) Assess(ctx context.Context, a *models.Action) (models.RiskAssessment, error) {
	r.mu.Lock()
	base := r.rng.Float64()*0.5 + 0.1
	pastCount := r.rng.Intn(50)
	successRate := 0.85 + r.rng.Float64()*0.1
	avgTime := fmt.Sprintf("%.1fs", r.rng.Float64()*5+1)
	confidence := 0.85 + r.rng.Float64()*0.1
	r.mu.Unlock()

	score := base
	factors := []models.RiskFactor{{
		Factor:   "declared_operation",
		Severity: models.RiskLevelFor(base),
		Weight:   base,
		Details:  fmt.Sprintf("%s on %s/%s", a.Target.Operation, a.Target.System, a.Target.Resource),
	}}

	if a.Context.Namespace == "production" {
		score = clamp(score + 0.15)
		factors = append(factors, models.RiskFactor{
			Factor:   "production_environment",
			Severity: models.RiskMedium,
			Weight:   0.15,
			Details:  "Target namespace is production",
		})
	}
	if a.Context.Status == "degraded" || a.Context.Status == "down" {
		score = clamp(score + 0.1)
		factors = append(factors, models.RiskFactor{
			Factor:   "service_unhealthy",
			Severity: models.RiskMedium,
			Weight:   0.1,
			Details:  fmt.Sprintf("Service currently reported %s", a.Context.Status),
		})
	}
	if a.Context.RecentDeployment {
		score = clamp(score + 0.1)
		factors = append(factors, models.RiskFactor{
			Factor:   "recent_deployment",
			Severity: models.RiskLow,
			Weight:   0.1,
			Details:  "A deployment landed recently; regressions are plausible",
		})
	}

	level := models.RiskLevelFor(score)
	recommendation := models.RecommendAutoApprove
	if score > models.MediumRiskThreshold {
		recommendation = models.RecommendHumanReview
	}
	return models.RiskAssessment{
		ActionID:    a.ActionID,
		Timestamp:   time.Now().UTC(),
		RiskScore:   score,
		RiskLevel:   level,
		RiskFactors: factors,
		SimilarActions: models.SimilarActions{
			Past30Days:            pastCount,
			SuccessRate:           successRate,
			AverageCompletionTime: avgTime,
		},
		Recommendation: recommendation,
		Confidence:     confidence,
	}, nil
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
