package activation

import (
	"context"
	"fmt"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
)

// SetParent 设置父配置
// 先脱离原父配置, 再把新父配置的全部激活规则传播到该配置
func (a *Activator) SetParent(ctx context.Context, profileKey, parentKey string, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	var changes []*model.ActiveRuleChange
	err := a.tx.Transaction(ctx, func(ctx context.Context) error {
		profile, err := a.loadEditableProfile(ctx, profileKey)
		if err != nil {
			return err
		}
		parent, err := a.loadProfile(ctx, parentKey)
		if err != nil {
			return err
		}
		if err := a.checkParent(ctx, profile, parent); err != nil {
			return err
		}
		if profile.ParentKey() == parent.Kee {
			return nil
		}

		w := a.newWalk(actor, newChildrenCache(a.store))
		overrides, err := w.detachInherited(ctx, profile)
		if err != nil {
			return err
		}
		pending := make(map[model.RuleKey]*model.ActiveRule, len(overrides))
		for _, activeRule := range overrides {
			pending[activeRule.RuleKey] = activeRule
		}
		if err := a.store.SetParent(ctx, profile.Kee, &parent.Kee); err != nil {
			return fmt.Errorf("set parent of %s: %w", profile.Kee, err)
		}
		profile.ParentKee = &parent.Kee

		parentRules, err := a.store.ListActiveRules(ctx, parent.Kee)
		if err != nil {
			return fmt.Errorf("list active rules of %s: %w", parent.Kee, err)
		}
		for _, parentRule := range parentRules {
			rule, err := w.loadRule(ctx, parentRule.RuleKey)
			if err != nil {
				return err
			}
			if rule.Status == model.RuleStatusRemoved {
				continue
			}
			// 原覆盖行直接按新父配置重新归类, 只产生一条变更
			if current, ok := pending[rule.RuleKey]; ok {
				delete(pending, rule.RuleKey)
				own := stateOf(current)
				t := &target{ruleState: *own, inheritance: inheritanceOf(own, stateOf(parentRule))}
				if err := w.apply(ctx, profile, rule, current, t); err != nil {
					return err
				}
				continue
			}
			next, err := w.inheritInto(ctx, rule, profile, stateOf(parentRule))
			if err != nil {
				return err
			}
			if next != nil {
				if err := w.propagate(ctx, rule, profile, next); err != nil {
					return err
				}
			}
		}
		// 新父配置未激活的覆盖行变为 NONE
		for _, activeRule := range overrides {
			if pending[activeRule.RuleKey] == nil {
				continue
			}
			if err := w.release(ctx, profile, activeRule); err != nil {
				return err
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

// RemoveParent 脱离父配置
// 继承的规则被停用 (级联), 覆盖的规则保留并变为 NONE
func (a *Activator) RemoveParent(ctx context.Context, profileKey string, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	var changes []*model.ActiveRuleChange
	err := a.tx.Transaction(ctx, func(ctx context.Context) error {
		profile, err := a.loadEditableProfile(ctx, profileKey)
		if err != nil {
			return err
		}
		if !profile.HasParent() {
			return nil
		}
		w := a.newWalk(actor, newChildrenCache(a.store))
		if err := w.detach(ctx, profile); err != nil {
			return err
		}
		if err := a.store.SetParent(ctx, profile.Kee, nil); err != nil {
			return fmt.Errorf("remove parent of %s: %w", profile.Kee, err)
		}
		changes = w.changes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// checkParent 语言一致且不能形成环
func (a *Activator) checkParent(ctx context.Context, profile, parent *model.Profile) error {
	if profile.Language != parent.Language {
		return errors.ErrLanguageMismatch.WithMessagef("Cannot set parent of %s profile %s to %s profile %s",
			profile.Language, profile.Name, parent.Language, parent.Name)
	}
	if profile.Kee == parent.Kee {
		return errors.ErrInvalidParent.WithMessagef("Quality profile %s cannot be its own parent", profile.Name)
	}
	visited := map[string]bool{parent.Kee: true}
	for ancestor := parent; ancestor.HasParent(); {
		key := ancestor.ParentKey()
		if key == profile.Kee {
			return errors.ErrInvalidParent.WithMessagef("Descendant %s cannot be set as parent of %s", parent.Name, profile.Name)
		}
		if visited[key] {
			break
		}
		visited[key] = true
		next, err := a.loadProfile(ctx, key)
		if err != nil {
			return err
		}
		ancestor = next
	}
	return nil
}

// detach 停用继承的规则 (级联), 覆盖的规则变为 NONE
func (w *walk) detach(ctx context.Context, profile *model.Profile) error {
	overrides, err := w.detachInherited(ctx, profile)
	if err != nil {
		return err
	}
	for _, activeRule := range overrides {
		if err := w.release(ctx, profile, activeRule); err != nil {
			return err
		}
	}
	return nil
}

// detachInherited 停用继承的规则, 按原顺序返回尚未处理的覆盖行
func (w *walk) detachInherited(ctx context.Context, profile *model.Profile) ([]*model.ActiveRule, error) {
	if !profile.HasParent() {
		return nil, nil
	}
	var overrides []*model.ActiveRule
	activeRules, err := w.store.ListActiveRules(ctx, profile.Kee)
	if err != nil {
		return nil, fmt.Errorf("list active rules of %s: %w", profile.Kee, err)
	}
	for _, activeRule := range activeRules {
		switch activeRule.Inheritance {
		case model.InheritanceInherited:
			if err := w.deactivate(ctx, activeRule); err != nil {
				return nil, err
			}
		case model.InheritanceOverrides:
			overrides = append(overrides, activeRule)
		}
	}
	return overrides, nil
}

// release 覆盖行保留取值, 继承状态变为 NONE
func (w *walk) release(ctx context.Context, profile *model.Profile, activeRule *model.ActiveRule) error {
	rule := &model.Rule{ID: activeRule.RuleID, RuleKey: activeRule.RuleKey}
	t := &target{ruleState: *stateOf(activeRule), inheritance: model.InheritanceNone}
	return w.apply(ctx, profile, rule, activeRule, t)
}
