package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

// ActivationStore 组合各仓储, 供激活引擎和内置配置同步使用
// 查询不到时返回 nil, nil
type ActivationStore struct {
	*Repository
	Rules       *RuleRepository
	Profiles    *ProfileRepository
	ActiveRules *ActiveRuleRepository
	Changes     *ChangeLogRepository
}

// NewActivationStore 创建激活存储
func NewActivationStore(base *Repository) *ActivationStore {
	return &ActivationStore{
		Repository:  base,
		Rules:       NewRuleRepository(base),
		Profiles:    NewProfileRepository(base),
		ActiveRules: NewActiveRuleRepository(base),
		Changes:     NewChangeLogRepository(base),
	}
}

// GetRule 获取规则及声明的参数
func (s *ActivationStore) GetRule(ctx context.Context, key model.RuleKey) (*model.Rule, error) {
	rule, err := s.Rules.GetByKey(ctx, key)
	if errors.Is(err, ErrRuleNotFound) {
		return nil, nil
	}
	return rule, err
}

// FindRules 分页查询匹配的规则
func (s *ActivationStore) FindRules(ctx context.Context, query model.RuleQuery, page, pageSize int) ([]*model.Rule, error) {
	rules, _, err := s.Rules.Find(ctx, query, NewPagination(page, pageSize))
	return rules, err
}

// GetProfile 获取配置
func (s *ActivationStore) GetProfile(ctx context.Context, key string) (*model.Profile, error) {
	profile, err := s.Profiles.GetByKey(ctx, key)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	return profile, err
}

// FindProfile 根据语言和名称获取配置
func (s *ActivationStore) FindProfile(ctx context.Context, language, name string) (*model.Profile, error) {
	profile, err := s.Profiles.GetByName(ctx, language, name)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	return profile, err
}

// CreateProfile 创建配置, key 为空时生成
func (s *ActivationStore) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if profile.Kee == "" {
		profile.Kee = uuid.New().String()
	}
	return s.Profiles.Create(ctx, profile)
}

// ListChildren 查询直接子配置
func (s *ActivationStore) ListChildren(ctx context.Context, key string) ([]*model.Profile, error) {
	return s.Profiles.ListChildren(ctx, key)
}

// SetParent 设置父配置, parentKey 为 nil 时清除
func (s *ActivationStore) SetParent(ctx context.Context, key string, parentKey *string) error {
	return s.Profiles.UpdateParent(ctx, key, parentKey)
}

// GetActiveRule 获取激活规则
func (s *ActivationStore) GetActiveRule(ctx context.Context, profileKey string, ruleKey model.RuleKey) (*model.ActiveRule, error) {
	activeRule, err := s.ActiveRules.Get(ctx, profileKey, ruleKey)
	if errors.Is(err, ErrActiveRuleNotFound) {
		return nil, nil
	}
	return activeRule, err
}

// ListActiveRules 查询配置的全部激活规则
func (s *ActivationStore) ListActiveRules(ctx context.Context, profileKey string) ([]*model.ActiveRule, error) {
	return s.ActiveRules.ListByProfile(ctx, profileKey)
}

// UpsertActiveRule 写入激活规则
func (s *ActivationStore) UpsertActiveRule(ctx context.Context, activeRule *model.ActiveRule) error {
	return s.ActiveRules.Upsert(ctx, activeRule)
}

// DeleteActiveRule 删除激活规则
func (s *ActivationStore) DeleteActiveRule(ctx context.Context, profileKey string, ruleKey model.RuleKey) error {
	return s.ActiveRules.Delete(ctx, profileKey, ruleKey)
}

// AppendChangeLog 追加变更日志并更新配置的变更时间
func (s *ActivationStore) AppendChangeLog(ctx context.Context, change *model.ActiveRuleChange, actor model.Actor, now int64) error {
	log := change.ToChangeLog(uuid.New().String(), actor, now)
	if err := s.Changes.Create(ctx, log); err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return s.Profiles.TouchRulesUpdated(ctx, change.ProfileKey, now, !actor.IsSystem())
}
