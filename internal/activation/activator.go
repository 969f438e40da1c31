package activation

import (
	"context"
	"fmt"
	"time"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
)

const defaultBulkPageSize = 100

// Activator 规则激活器
type Activator struct {
	catalog  RuleCatalog
	store    Store
	tx       Transactor
	source   RuleSource
	now      func() int64
	pageSize int
}

// NewActivator 创建规则激活器
func NewActivator(catalog RuleCatalog, store Store, tx Transactor, source RuleSource) *Activator {
	return &Activator{
		catalog:  catalog,
		store:    store,
		tx:       tx,
		source:   source,
		now:      func() int64 { return time.Now().UnixMilli() },
		pageSize: defaultBulkPageSize,
	}
}

// SetClock 替换时钟
func (a *Activator) SetClock(now func() int64) {
	a.now = now
}

// SetBulkPageSize 设置批量操作每页规则数
func (a *Activator) SetBulkPageSize(size int) {
	if size > 0 {
		a.pageSize = size
	}
}

// Activate 在配置上激活或更新规则, 并向子配置传播
func (a *Activator) Activate(ctx context.Context, profileKey string, req RuleActivation, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	var changes []*model.ActiveRuleChange
	err := a.tx.Transaction(ctx, func(ctx context.Context) error {
		profile, err := a.loadEditableProfile(ctx, profileKey)
		if err != nil {
			return err
		}
		w := a.newWalk(actor, newChildrenCache(a.store))
		if err := w.activate(ctx, profile, req); err != nil {
			return err
		}
		changes = w.changes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Reset 恢复规则默认值 (有父配置时恢复为父配置的值)
func (a *Activator) Reset(ctx context.Context, profileKey string, ruleKey model.RuleKey, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	return a.Activate(ctx, profileKey, ResetActivation(ruleKey), actor)
}

// Deactivate 停用规则, 级联删除所有子配置上的该规则
func (a *Activator) Deactivate(ctx context.Context, profileKey string, ruleKey model.RuleKey, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	var changes []*model.ActiveRuleChange
	err := a.tx.Transaction(ctx, func(ctx context.Context) error {
		profile, err := a.loadEditableProfile(ctx, profileKey)
		if err != nil {
			return err
		}
		w := a.newWalk(actor, newChildrenCache(a.store))
		if err := w.deactivateRule(ctx, profile, ruleKey); err != nil {
			return err
		}
		changes = w.changes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (a *Activator) loadProfile(ctx context.Context, key string) (*model.Profile, error) {
	profile, err := a.store.GetProfile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", key, err)
	}
	if profile == nil {
		return nil, errors.ErrProfileNotFound.WithMessagef("Quality profile not found: %s", key)
	}
	return profile, nil
}

// loadEditableProfile 内置配置只能由同步器修改
func (a *Activator) loadEditableProfile(ctx context.Context, key string) (*model.Profile, error) {
	profile, err := a.loadProfile(ctx, key)
	if err != nil {
		return nil, err
	}
	if profile.IsBuiltIn {
		return nil, errors.ErrBuiltInReadOnly.WithMessagef("Operation forbidden for built-in Quality Profile '%s' with language '%s'", profile.Name, profile.Language)
	}
	return profile, nil
}

// checkActivatable 激活前置条件
func checkActivatable(rule *model.Rule, profile *model.Profile) error {
	if rule.Status == model.RuleStatusRemoved {
		return errors.ErrRuleRemoved.WithMessagef("Rule was removed: %s", rule.RuleKey)
	}
	if rule.IsTemplate {
		return errors.ErrRuleTemplate.WithMessagef("Rule template can't be activated on a Quality profile: %s", rule.RuleKey)
	}
	if rule.Language != profile.Language {
		return errors.ErrLanguageMismatch.WithMessagef("%s rule %s cannot be activated on %s profile %s",
			rule.Language, rule.RuleKey, profile.Language, profile.Name)
	}
	return nil
}

func (a *Activator) newWalk(actor model.Actor, children *childrenCache) *walk {
	return &walk{store: a.store, catalog: a.catalog, actor: actor, now: a.now(), children: children}
}

// Propagate 把配置上某规则的当前状态传播到后代, 不修改该配置本身
// 配置已不再激活该规则时, 级联停用子配置上的该规则
func (a *Activator) Propagate(ctx context.Context, profileKey string, ruleKey model.RuleKey, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	var changes []*model.ActiveRuleChange
	err := a.tx.Transaction(ctx, func(ctx context.Context) error {
		profile, err := a.loadProfile(ctx, profileKey)
		if err != nil {
			return err
		}
		w := a.newWalk(actor, newChildrenCache(a.store))
		rule, err := w.loadRule(ctx, ruleKey)
		if err != nil {
			return err
		}
		current, err := w.activeRule(ctx, profile.Kee, ruleKey)
		if err != nil {
			return err
		}
		if current != nil {
			if err := w.propagate(ctx, rule, profile, stateOf(current)); err != nil {
				return err
			}
		} else {
			children, err := w.children.get(ctx, profile.Kee)
			if err != nil {
				return err
			}
			for _, child := range children {
				childRule, err := w.activeRule(ctx, child.Kee, ruleKey)
				if err != nil {
					return err
				}
				if childRule == nil {
					continue
				}
				if err := w.deactivate(ctx, childRule); err != nil {
					return err
				}
			}
		}
		changes = w.changes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}
