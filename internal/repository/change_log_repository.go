package repository

import (
	"context"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

// ChangeLogRepository 变更日志仓储
type ChangeLogRepository struct {
	*Repository
}

// NewChangeLogRepository 创建变更日志仓储
func NewChangeLogRepository(base *Repository) *ChangeLogRepository {
	return &ChangeLogRepository{Repository: base}
}

// Create 追加变更日志
func (r *ChangeLogRepository) Create(ctx context.Context, log *model.ChangeLog) error {
	return r.DB(ctx).Create(log).Error
}

// ListByProfile 按配置和时间范围查询, 最新的在前
func (r *ChangeLogRepository) ListByProfile(ctx context.Context, profileKey string, tr *TimeRange, pagination *Pagination) ([]*model.ChangeLog, int64, error) {
	var logs []*model.ChangeLog
	var total int64

	query := r.DB(ctx).Model(&model.ChangeLog{}).Where("profile_kee = ?", profileKey)
	query = tr.apply(query, "created_at")

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
