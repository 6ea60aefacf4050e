package services

import (
	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
)

// PointsPolicy is the single authoritative award rule. Every call site that
// computes points (HTTP submission, webhook submission, evaluation) goes
// through it; there is deliberately no other place that decides an award.
type PointsPolicy struct {
	// DefaultBase is used for synthesized templates that carry no configured value.
	DefaultBase int
	// MediaBonus is added to the template base when proof media is attached.
	MediaBonus int
}

// PolicyFromConfig builds the policy from application configuration.
func PolicyFromConfig(cfg config.AppConfig) PointsPolicy {
	return PointsPolicy{
		DefaultBase: cfg.PointsBase,
		MediaBonus:  cfg.MediaBonusPoints,
	}
}

// SubmissionPoints is the provisional award recorded at submission time.
func (p PointsPolicy) SubmissionPoints(tmpl *models.DayTemplate, mediaPresent bool) int {
	base := p.DefaultBase
	if tmpl != nil && tmpl.PointsBase > 0 {
		base = tmpl.PointsBase
	}
	if mediaPresent {
		return base + p.MediaBonus
	}
	return base
}

// ApprovalPoints is the final award, re-derived from the template base on
// approval regardless of the provisionally submitted amount.
func (p PointsPolicy) ApprovalPoints(tmpl *models.DayTemplate) int {
	if tmpl == nil || tmpl.PointsBase <= 0 {
		return p.DefaultBase
	}
	return tmpl.PointsBase
}
