package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

// SubmissionRepository defines data operations for essay submissions, their
// corrections and processing logs.
type SubmissionRepository interface {
	CreateWithLog(ctx context.Context, submission *models.EssaySubmission, entry *models.SubmissionLog) error
	GetByID(ctx context.Context, id uint) (models.EssaySubmission, error)
	GetOwned(ctx context.Context, id, userID uint) (models.EssaySubmission, error)
	ListByUser(ctx context.Context, userID uint) ([]models.EssaySubmission, error)
	TransitionStatus(ctx context.Context, id uint, from, to string, entry *models.SubmissionLog) error
	Complete(ctx context.Context, id uint, correction *models.Correction, entry *models.SubmissionLog) error
	AppendLog(ctx context.Context, entry *models.SubmissionLog) error
	ListLogs(ctx context.Context, submissionID uint) ([]models.SubmissionLog, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) withCorrection(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.EssaySubmission{}).
		Preload("Correction").
		Preload("Correction.Criteria", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id ASC")
		})
}

func (r *submissionRepository) CreateWithLog(ctx context.Context, submission *models.EssaySubmission, entry *models.SubmissionLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Correction", "Logs").Create(submission).Error; err != nil {
			return err
		}

		if entry == nil {
			return nil
		}

		entry.EssaySubmissionID = submission.ID
		return tx.Create(entry).Error
	})
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.EssaySubmission, error) {
	var submission models.EssaySubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.EssaySubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetOwned(ctx context.Context, id, userID uint) (models.EssaySubmission, error) {
	var submission models.EssaySubmission
	if err := r.withCorrection(ctx).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		First(&submission).Error; err != nil {
		return models.EssaySubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByUser(ctx context.Context, userID uint) ([]models.EssaySubmission, error) {
	var submissions []models.EssaySubmission
	if err := r.withCorrection(ctx).
		Where("user_id = ?", userID).
		Order("submission_date DESC").
		Order("id DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// TransitionStatus moves a submission from one status to another only if it is
// still in the expected status, then appends the log entry.
func (r *submissionRepository) TransitionStatus(ctx context.Context, id uint, from, to string, entry *models.SubmissionLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := compareAndSwapStatus(tx, id, from, to); err != nil {
			return err
		}

		if entry == nil {
			return nil
		}

		entry.EssaySubmissionID = id
		return tx.Create(entry).Error
	})
}

// Complete materialises a correction with its criteria and flips the submission
// to completed. Either everything is written or nothing is.
func (r *submissionRepository) Complete(ctx context.Context, id uint, correction *models.Correction, entry *models.SubmissionLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := compareAndSwapStatus(tx, id, models.SubmissionStatusProcessing, models.SubmissionStatusCompleted); err != nil {
			return err
		}

		correction.EssaySubmissionID = id
		if err := tx.Create(correction).Error; err != nil {
			return err
		}

		if entry == nil {
			return nil
		}

		entry.EssaySubmissionID = id
		return tx.Create(entry).Error
	})
}

func (r *submissionRepository) AppendLog(ctx context.Context, entry *models.SubmissionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *submissionRepository) ListLogs(ctx context.Context, submissionID uint) ([]models.SubmissionLog, error) {
	var entries []models.SubmissionLog
	if err := r.db.WithContext(ctx).
		Where("essay_submission_id = ?", submissionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func compareAndSwapStatus(tx *gorm.DB, id uint, from, to string) error {
	update := tx.Model(&models.EssaySubmission{}).
		Where("id = ?", id).
		Where("status = ?", from).
		Update("status", to)
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}
