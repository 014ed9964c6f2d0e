package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/Utsav173/expense-tracker-sub003/config"
	"github.com/Utsav173/expense-tracker-sub003/models"
	"github.com/Utsav173/expense-tracker-sub003/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const recurringLockKey = "recurring-generation-pass"

type GenerationResult struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
}

// NextOccurrence returns the occurrence that follows last for the given
// cadence. Monthly and yearly steps follow time.AddDate semantics, so
// Jan 31 + 1 month lands on Mar 2/3 rather than failing.
func NextOccurrence(last time.Time, recurrenceType models.RecurrenceType) time.Time {
	switch recurrenceType {
	case models.RecurrenceTypeDaily:
		return last.AddDate(0, 0, 1)
	case models.RecurrenceTypeWeekly:
		return last.AddDate(0, 0, 7)
	case models.RecurrenceTypeMonthly:
		return last.AddDate(0, 1, 0)
	case models.RecurrenceTypeYearly:
		return last.AddDate(1, 0, 0)
	}
	return last
}

// templateDue decides whether a template owes an occurrence right now, and
// at which date. last is the most recent materialized copy's date, or the
// template's own date when none exists yet. Both the next occurrence and now
// are normalized to start of day before comparing, so a template created
// late in the evening still generates on the next calendar day. An
// occurrence landing on or after the end date is never generated.
func templateDue(template *models.Transaction, last time.Time, now time.Time, loc *time.Location) (time.Time, bool) {
	if template.RecurrenceType == nil {
		return time.Time{}, false
	}
	next := utils.StartOfDay(NextOccurrence(last, *template.RecurrenceType), loc)
	if next.After(utils.StartOfDay(now, loc)) {
		return time.Time{}, false
	}
	if template.RecurrenceEndDate != nil && !next.Before(*template.RecurrenceEndDate) {
		return time.Time{}, false
	}
	return next, true
}

// RunRecurringGenerationPass scans active recurring templates and
// materializes at most one due occurrence per template. The pass is guarded
// by a distributed lock so overlapping schedulers cannot double-post; when
// redis is not configured the guard is skipped and the pass runs unguarded.
func RunRecurringGenerationPass(ctx context.Context, logger *logrus.Logger) (*GenerationResult, error) {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, recurringLockKey, 10*time.Minute, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				logger.WithField("lock", recurringLockKey).Info("generation pass already running elsewhere, skipping")
				return &GenerationResult{}, nil
			}
			return nil, err
		}
		defer lock.Release(ctx)
	}

	now := time.Now()
	db := config.GetDB()

	var templates []*models.Transaction
	err := db.WithContext(ctx).
		Where("recurring = ?", true).
		Where("recurrence_end_date IS NULL OR recurrence_end_date > ?", now).
		Order("created_at ASC").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{}
	for _, template := range templates {
		generated, err := generateForTemplate(ctx, db, template, now)
		if err != nil {
			// one broken template must not stop the pass
			result.Errored++
			config.LogError(logger, "workflow", "RunRecurringGenerationPass", "generate occurrence", map[string]interface{}{
				"templateId": template.ID,
			}, err)
			continue
		}
		if generated {
			result.Generated++
		} else {
			result.Skipped++
		}
	}

	fields := logrus.Fields{
		"templates": len(templates),
		"generated": result.Generated,
		"skipped":   result.Skipped,
		"errored":   result.Errored,
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	logger.WithFields(fields).Info("recurring generation pass finished")
	return result, nil
}

// generateForTemplate materializes the next due occurrence of one template,
// if any. The last occurrence is found by signature match over the plain
// copies, so generation stays idempotent across repeated passes.
func generateForTemplate(ctx context.Context, db *gorm.DB, template *models.Transaction, now time.Time) (bool, error) {
	loc, err := utils.LoadLocationCached(utils.LedgerTimezone())
	if err != nil {
		return false, err
	}
	last, err := lastOccurrence(ctx, db, template)
	if err != nil {
		return false, err
	}

	occurrenceDate, due := templateDue(template, last, now, loc)
	if !due {
		return false, nil
	}

	isIncome := utils.DereferencePtr(template.IsIncome)
	_, err = models.CreateTransaction(ctx, models.SystemActor(), &models.NewTransaction{
		AccountId:  template.AccountId,
		Amount:     template.Amount,
		IsIncome:   &isIncome,
		Text:       template.Text,
		Transfer:   template.Transfer,
		CategoryId: template.CategoryId,
		CreatedAt:  &occurrenceDate,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// lastOccurrence returns the date of the most recent plain copy sharing the
// template's signature, or the template's own date when none exists.
func lastOccurrence(ctx context.Context, db *gorm.DB, template *models.Transaction) (time.Time, error) {
	query := db.WithContext(ctx).
		Where("recurring = ?", false).
		Where("owner_id = ? AND account_id = ?", template.OwnerId, template.AccountId).
		Where("text = ? AND amount = ? AND is_income = ? AND transfer = ?",
			template.Text, template.Amount, template.IsIncome, template.Transfer)
	if template.CategoryId != nil {
		query = query.Where("category_id = ?", *template.CategoryId)
	} else {
		query = query.Where("category_id IS NULL")
	}

	var latest models.Transaction
	err := query.Order("created_at DESC").First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return template.CreatedAt, nil
		}
		return time.Time{}, err
	}
	return latest.CreatedAt, nil
}
