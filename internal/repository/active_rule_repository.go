package repository

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

var ErrActiveRuleNotFound = errors.New("active rule not found")

// ActiveRuleRepository 激活规则仓储
type ActiveRuleRepository struct {
	*Repository
}

// NewActiveRuleRepository 创建激活规则仓储
func NewActiveRuleRepository(base *Repository) *ActiveRuleRepository {
	return &ActiveRuleRepository{Repository: base}
}

// Get 根据 (配置, 规则) 获取
func (r *ActiveRuleRepository) Get(ctx context.Context, profileKey string, ruleKey model.RuleKey) (*model.ActiveRule, error) {
	var activeRule model.ActiveRule
	err := r.DB(ctx).
		Preload("Params", sortedByName).
		Where("profile_kee = ? AND rule_key = ?", profileKey, ruleKey).
		First(&activeRule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActiveRuleNotFound
		}
		return nil, err
	}
	return &activeRule, nil
}

// ListByProfile 查询配置的全部激活规则, 按规则标识排序
func (r *ActiveRuleRepository) ListByProfile(ctx context.Context, profileKey string) ([]*model.ActiveRule, error) {
	var activeRules []*model.ActiveRule
	err := r.DB(ctx).
		Preload("Params", sortedByName).
		Where("profile_kee = ?", profileKey).
		Order("rule_key ASC").
		Find(&activeRules).Error
	if err != nil {
		return nil, err
	}
	return activeRules, nil
}

// CountByProfile 统计配置的激活规则数
func (r *ActiveRuleRepository) CountByProfile(ctx context.Context, profileKey string) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&model.ActiveRule{}).
		Where("profile_kee = ?", profileKey).
		Count(&count).Error
	return count, err
}

// Upsert 新建或更新激活规则, 参数整体替换
func (r *ActiveRuleRepository) Upsert(ctx context.Context, activeRule *model.ActiveRule) error {
	db := r.DB(ctx)
	params := activeRule.Params
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })

	if activeRule.ID == 0 {
		activeRule.Params = nil
		if err := db.Create(activeRule).Error; err != nil {
			activeRule.Params = params
			return err
		}
	} else {
		err := db.Model(&model.ActiveRule{}).
			Where("id = ?", activeRule.ID).
			Updates(map[string]interface{}{
				"severity":    activeRule.Severity,
				"inheritance": activeRule.Inheritance,
				"updated_at":  activeRule.UpdatedAt,
			}).Error
		if err != nil {
			return err
		}
		if err := db.Where("active_rule_id = ?", activeRule.ID).Delete(&model.ActiveRuleParam{}).Error; err != nil {
			return err
		}
	}

	for _, p := range params {
		p.ID = 0
		p.ActiveRuleID = activeRule.ID
	}
	if len(params) > 0 {
		if err := db.Create(&params).Error; err != nil {
			return err
		}
	}
	activeRule.Params = params
	return nil
}

// Delete 删除激活规则及其参数
func (r *ActiveRuleRepository) Delete(ctx context.Context, profileKey string, ruleKey model.RuleKey) error {
	db := r.DB(ctx)
	var ids []int64
	err := db.Model(&model.ActiveRule{}).
		Where("profile_kee = ? AND rule_key = ?", profileKey, ruleKey).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrActiveRuleNotFound
	}
	if err := db.Where("active_rule_id IN ?", ids).Delete(&model.ActiveRuleParam{}).Error; err != nil {
		return err
	}
	return db.Where("id IN ?", ids).Delete(&model.ActiveRule{}).Error
}

// DeleteByProfiles 删除多个配置的全部激活规则
func (r *ActiveRuleRepository) DeleteByProfiles(ctx context.Context, profileKeys []string) error {
	if len(profileKeys) == 0 {
		return nil
	}
	db := r.DB(ctx)
	ids := db.Model(&model.ActiveRule{}).Select("id").Where("profile_kee IN ?", profileKeys)
	if err := db.Where("active_rule_id IN (?)", ids).Delete(&model.ActiveRuleParam{}).Error; err != nil {
		return err
	}
	return db.Where("profile_kee IN ?", profileKeys).Delete(&model.ActiveRule{}).Error
}

func sortedByName(db *gorm.DB) *gorm.DB {
	return db.Order("name ASC")
}
