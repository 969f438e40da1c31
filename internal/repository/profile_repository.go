package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

var (
	ErrProfileNotFound  = errors.New("quality profile not found")
	ErrProfileDuplicate = errors.New("quality profile already exists")
)

// ProfileRepository 质量配置仓储
type ProfileRepository struct {
	*Repository
}

// NewProfileRepository 创建质量配置仓储
func NewProfileRepository(base *Repository) *ProfileRepository {
	return &ProfileRepository{Repository: base}
}

// Create 创建配置
func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	if err := r.DB(ctx).Create(profile).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrProfileDuplicate
		}
		return err
	}
	return nil
}

// GetByKey 根据 key 获取
func (r *ProfileRepository) GetByKey(ctx context.Context, key string) (*model.Profile, error) {
	var profile model.Profile
	err := r.DB(ctx).Where("kee = ?", key).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// GetByName 根据语言和名称获取
func (r *ProfileRepository) GetByName(ctx context.Context, language, name string) (*model.Profile, error) {
	var profile model.Profile
	err := r.DB(ctx).
		Where("language = ? AND name = ?", language, name).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ListChildren 查询直接子配置
func (r *ProfileRepository) ListChildren(ctx context.Context, key string) ([]*model.Profile, error) {
	var profiles []*model.Profile
	err := r.DB(ctx).
		Where("parent_kee = ?", key).
		Order("name ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateParent 设置或清除父配置
func (r *ProfileRepository) UpdateParent(ctx context.Context, key string, parentKey *string) error {
	result := r.DB(ctx).
		Model(&model.Profile{}).
		Where("kee = ?", key).
		Update("parent_kee", parentKey)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// TouchRulesUpdated 记录规则变更时间, 用户变更同时更新 user_updated_at
func (r *ProfileRepository) TouchRulesUpdated(ctx context.Context, key string, now int64, byUser bool) error {
	updates := map[string]interface{}{
		"rules_updated_at": now,
	}
	if byUser {
		updates["user_updated_at"] = now
	}
	result := r.DB(ctx).
		Model(&model.Profile{}).
		Where("kee = ?", key).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// DeleteByKeys 删除配置
func (r *ProfileRepository) DeleteByKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.DB(ctx).Where("kee IN ?", keys).Delete(&model.Profile{}).Error
}
