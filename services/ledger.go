package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/utils"
)

// LedgerService owns the completion record lifecycle: idempotent submission
// upserts and supervisor evaluation. Every mutation also adjusts the ranking
// aggregate inside the same transaction, so the derived totals can never
// drift from the ledger.
type LedgerService struct {
	db      *gorm.DB
	ranking *RankingService
	policy  PointsPolicy
}

// NewLedgerService creates the ledger over the given database and ranking service.
func NewLedgerService(db *gorm.DB, ranking *RankingService, policy PointsPolicy) *LedgerService {
	return &LedgerService{db: db, ranking: ranking, policy: policy}
}

// Submit records a user's proof for a project day. Keyed by (user, project,
// day): repeated submissions replace the pending record, they never
// accumulate points. Resubmitting over an APPROVED record retracts its
// aggregate contribution and moves the record back to PENDING_REVIEW.
func (s *LedgerService) Submit(userID, projectID uint, dayNumber int, mediaRefs []string, notes string) (*models.CompletionRecord, error) {
	if dayNumber < 1 {
		return nil, validationf("day number %d out of range", dayNumber)
	}

	var record models.CompletionRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tmpl, err := s.resolveTemplate(tx, projectID, dayNumber)
		if err != nil {
			return err
		}

		mediaPresent := len(mediaRefs) > 0
		if tmpl.RequiresPhoto && !mediaPresent {
			return validationf("day %d of project %d requires photo proof", dayNumber, projectID)
		}

		points := s.policy.SubmissionPoints(tmpl, mediaPresent)
		now := time.Now()

		var prevApproved int
		var wasApproved bool
		err = lockForUpdate(tx).
			Where("user_id = ? AND project_id = ? AND day_number = ?", userID, projectID, dayNumber).
			First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.CompletionRecord{
				UserID:    userID,
				ProjectID: projectID,
				DayNumber: dayNumber,
			}
		case err != nil:
			return err
		default:
			prevApproved = record.ApprovedPoints()
			wasApproved = record.Status == models.CompletionApproved
		}

		record.Status = models.CompletionPendingReview
		record.PointsAwarded = points
		record.MediaRefs = models.MediaRefList(mediaRefs)
		record.Notes = utils.Sanitize(notes)
		record.SubmittedAt = &now
		record.EvaluatedAt = nil

		if err := tx.Save(&record).Error; err != nil {
			return err
		}

		// A pending record contributes nothing; only retract what an earlier
		// approval had already added.
		completionDelta := 0
		if wasApproved {
			completionDelta = -1
		}
		return s.ranking.ApplyDelta(tx, userID, projectID, -prevApproved, completionDelta)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Evaluate decides a pending submission. Approval re-derives the award from
// the template via the points policy; rejection zeroes it. The aggregate delta
// is computed against the record's previous contribution, so repeated or
// reversed evaluations stay exact.
func (s *LedgerService) Evaluate(recordID uint, decision, notes string) (*models.CompletionRecord, error) {
	if decision != models.CompletionApproved && decision != models.CompletionRejected {
		return nil, validationf("unknown decision %q", decision)
	}

	var record models.CompletionRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := lockForUpdate(tx).First(&record, recordID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return notFoundf("completion record %d", recordID)
		case err != nil:
			return err
		}

		prevApproved := record.ApprovedPoints()
		wasApproved := record.Status == models.CompletionApproved
		now := time.Now()

		var pointsDelta, completionDelta int
		if decision == models.CompletionApproved {
			var tmpl *models.DayTemplate
			var t models.DayTemplate
			if err := tx.Where("project_id = ? AND day_number = ?", record.ProjectID, record.DayNumber).
				First(&t).Error; err == nil {
				tmpl = &t
			} else if utils.Sugar != nil {
				utils.Sugar.Warnf("template missing for project %d day %d during approval, using policy default",
					record.ProjectID, record.DayNumber)
			}
			points := s.policy.ApprovalPoints(tmpl)
			record.Status = models.CompletionApproved
			record.PointsAwarded = points
			record.EvaluatedAt = &now
			pointsDelta = points - prevApproved
			if !wasApproved {
				completionDelta = 1
			}
		} else {
			record.Status = models.CompletionRejected
			record.PointsAwarded = 0
			record.EvaluatedAt = &now
			pointsDelta = -prevApproved
			if wasApproved {
				completionDelta = -1
			}
		}

		if notes != "" {
			record.Notes = utils.Sanitize(notes)
		}

		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		return s.ranking.ApplyDelta(tx, record.UserID, record.ProjectID, pointsDelta, completionDelta)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get loads a single completion record.
func (s *LedgerService) Get(recordID uint) (*models.CompletionRecord, error) {
	var record models.CompletionRecord
	if err := s.db.First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("completion record %d", recordID)
		}
		return nil, err
	}
	return &record, nil
}

// ListForUser returns a user's ledger rows for a project ordered by day.
func (s *LedgerService) ListForUser(userID, projectID uint) ([]models.CompletionRecord, error) {
	var records []models.CompletionRecord
	err := s.db.Where("user_id = ? AND project_id = ?", userID, projectID).
		Order("day_number ASC").
		Find(&records).Error
	return records, err
}

// resolveTemplate loads the day template, or synthesizes one from the
// project's dispatch task content when the compatibility mode is enabled.
// Synthesis changes business rules (policy default points, no photo
// requirement), so it is opt-in and always logged.
func (s *LedgerService) resolveTemplate(tx *gorm.DB, projectID uint, dayNumber int) (*models.DayTemplate, error) {
	var tmpl models.DayTemplate
	err := tx.Where("project_id = ? AND day_number = ?", projectID, dayNumber).First(&tmpl).Error
	if err == nil {
		return &tmpl, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if !config.Get().TemplateSynthesisEnabled {
		return nil, configurationf("no template configured for project %d day %d", projectID, dayNumber)
	}

	title := "Day challenge"
	var task models.DispatchTask
	if err := tx.Where("project_id = ?", projectID).Order("scheduled_at DESC").First(&task).Error; err == nil {
		title = firstLine(task.Content)
	}

	tmpl = models.DayTemplate{
		ProjectID:   projectID,
		DayNumber:   dayNumber,
		Title:       title,
		PointsBase:  s.policy.DefaultBase,
		Synthesized: true,
	}
	if err := tx.Create(&tmpl).Error; err != nil {
		return nil, err
	}
	if utils.Sugar != nil {
		utils.Sugar.Warnf("synthesized template for project %d day %d (compatibility mode)", projectID, dayNumber)
	}
	return &tmpl, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
