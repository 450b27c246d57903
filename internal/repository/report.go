package repository

import (
	"context"

	"quoteit/internal/models"

	"gorm.io/gorm"
)

// ReportRepository stores moderation reports. Reports are write-only from the service's point of view.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
