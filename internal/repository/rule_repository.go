package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrRuleDuplicate = errors.New("rule already exists")
)

// RuleRepository 规则仓储
type RuleRepository struct {
	*Repository
}

// NewRuleRepository 创建规则仓储
func NewRuleRepository(base *Repository) *RuleRepository {
	return &RuleRepository{Repository: base}
}

// Create 创建规则及其参数
func (r *RuleRepository) Create(ctx context.Context, rule *model.Rule) error {
	if rule.Repository == "" {
		rule.Repository = rule.RuleKey.Repository()
	}
	for i, p := range rule.Params {
		p.SortOrder = i
	}
	if err := r.DB(ctx).Create(rule).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrRuleDuplicate
		}
		return err
	}
	return nil
}

// UpdateStatus 更新规则状态
func (r *RuleRepository) UpdateStatus(ctx context.Context, key model.RuleKey, status model.RuleStatus) error {
	result := r.DB(ctx).
		Model(&model.Rule{}).
		Where("rule_key = ?", key).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// GetByKey 根据规则标识获取, 参数按声明顺序加载
func (r *RuleRepository) GetByKey(ctx context.Context, key model.RuleKey) (*model.Rule, error) {
	var rule model.Rule
	err := r.DB(ctx).
		Preload("Params", orderedParams).
		Where("rule_key = ?", key).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// Find 按条件分页查询规则, 按规则标识排序
func (r *RuleRepository) Find(ctx context.Context, query model.RuleQuery, pagination *Pagination) ([]*model.Rule, int64, error) {
	var rules []*model.Rule
	var total int64

	db := r.DB(ctx).Model(&model.Rule{})
	if query.Repository != "" {
		db = db.Where("repository = ?", query.Repository)
	}
	if query.Language != "" {
		db = db.Where("language = ?", query.Language)
	}
	if len(query.Statuses) > 0 {
		db = db.Where("status IN ?", query.Statuses)
	}
	if len(query.RuleKeys) > 0 {
		db = db.Where("rule_key IN ?", query.RuleKeys)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.
		Preload("Params", orderedParams).
		Order("rule_key ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&rules).Error
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

func orderedParams(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC")
}
