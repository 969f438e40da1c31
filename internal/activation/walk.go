package activation

import (
	"context"
	"fmt"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
)

// childrenCache 单次调用内缓存子配置查询
type childrenCache struct {
	store    Store
	byParent map[string][]*model.Profile
}

func newChildrenCache(store Store) *childrenCache {
	return &childrenCache{store: store, byParent: make(map[string][]*model.Profile)}
}

func (c *childrenCache) get(ctx context.Context, key string) ([]*model.Profile, error) {
	if children, ok := c.byParent[key]; ok {
		return children, nil
	}
	children, err := c.store.ListChildren(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", key, err)
	}
	c.byParent[key] = children
	return children, nil
}

// walk 一次操作在配置树上的遍历, 按遍历顺序收集变更
type walk struct {
	store    Store
	catalog  RuleCatalog
	actor    model.Actor
	now      int64
	children *childrenCache
	changes  []*model.ActiveRuleChange
}

// activate 对 profile 应用请求, 再广度优先传播到子配置
func (w *walk) activate(ctx context.Context, profile *model.Profile, req RuleActivation) error {
	rule, err := w.loadRule(ctx, req.RuleKey)
	if err != nil {
		return err
	}
	if err := checkActivatable(rule, profile); err != nil {
		return err
	}
	current, err := w.activeRule(ctx, profile.Kee, rule.RuleKey)
	if err != nil {
		return err
	}
	if req.Reset && current == nil {
		return nil
	}
	parent, err := w.parentState(ctx, profile, rule.RuleKey)
	if err != nil {
		return err
	}
	t, err := resolveRequest(rule, req, current, parent)
	if err != nil {
		return err
	}
	if err := w.apply(ctx, profile, rule, current, t); err != nil {
		return err
	}
	return w.propagate(ctx, rule, profile, &t.ruleState)
}

// propagate 从 profile 向下传播新状态, 已覆盖的子配置为传播边界
func (w *walk) propagate(ctx context.Context, rule *model.Rule, from *model.Profile, state *ruleState) error {
	type item struct {
		profile *model.Profile
		state   *ruleState
	}
	queue := []item{{profile: from, state: state}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		children, err := w.children.get(ctx, it.profile.Kee)
		if err != nil {
			return err
		}
		for _, child := range children {
			next, err := w.inheritInto(ctx, rule, child, it.state)
			if err != nil {
				return err
			}
			if next != nil {
				queue = append(queue, item{profile: child, state: next})
			}
		}
	}
	return nil
}

// inheritInto 把父配置的新状态应用到子配置
// 返回非 nil 时需要继续向该子配置的后代传播
func (w *walk) inheritInto(ctx context.Context, rule *model.Rule, child *model.Profile, parent *ruleState) (*ruleState, error) {
	current, err := w.activeRule(ctx, child.Kee, rule.RuleKey)
	if err != nil {
		return nil, err
	}
	switch {
	case current == nil || current.Inheritance == model.InheritanceInherited:
		t := inherit(rule, parent)
		if err := w.apply(ctx, child, rule, current, t); err != nil {
			return nil, err
		}
		return &t.ruleState, nil
	case current.Inheritance == model.InheritanceOverrides:
		return nil, nil
	default:
		// 子配置独立激活过该规则: 保留其取值, 仅重新计算继承状态
		own := stateOf(current)
		t := &target{ruleState: *own, inheritance: inheritanceOf(own, parent)}
		return nil, w.apply(ctx, child, rule, current, t)
	}
}

// apply 写入目标状态并记录变更, 与当前行一致时不做任何事
func (w *walk) apply(ctx context.Context, profile *model.Profile, rule *model.Rule, current *model.ActiveRule, t *target) error {
	if t.sameAs(current) {
		return nil
	}
	changeType := model.ChangeTypeUpdated
	activeRule := current
	if activeRule == nil {
		changeType = model.ChangeTypeActivated
		activeRule = &model.ActiveRule{
			ProfileKee: profile.Kee,
			RuleKey:    rule.RuleKey,
			RuleID:     rule.ID,
			CreatedAt:  w.now,
		}
	}
	activeRule.Severity = t.severity
	activeRule.Inheritance = t.inheritance
	activeRule.SetParams(t.params)
	activeRule.UpdatedAt = w.now
	if err := w.store.UpsertActiveRule(ctx, activeRule); err != nil {
		return fmt.Errorf("upsert active rule %s on %s: %w", rule.RuleKey, profile.Kee, err)
	}
	return w.record(ctx, &model.ActiveRuleChange{
		Type:        changeType,
		ProfileKey:  profile.Kee,
		RuleKey:     rule.RuleKey,
		RuleID:      activeRule.RuleID,
		Severity:    t.severity,
		Inheritance: t.inheritance,
		Params:      t.params,
	})
}

// deactivateRule 停用入口, 不允许直接停用继承的规则
func (w *walk) deactivateRule(ctx context.Context, profile *model.Profile, ruleKey model.RuleKey) error {
	// 已删除的规则仍允许停用
	if _, err := w.loadRule(ctx, ruleKey); err != nil {
		return err
	}
	current, err := w.activeRule(ctx, profile.Kee, ruleKey)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	if current.Inheritance == model.InheritanceInherited {
		return errors.ErrInheritedRule.WithMessagef("Cannot deactivate inherited rule '%s'", ruleKey)
	}
	return w.deactivate(ctx, current)
}

// deactivate 删除该行, 并级联删除所有仍激活该规则的后代, 不论继承状态
func (w *walk) deactivate(ctx context.Context, activeRule *model.ActiveRule) error {
	queue := []*model.ActiveRule{activeRule}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if err := w.store.DeleteActiveRule(ctx, current.ProfileKee, current.RuleKey); err != nil {
			return fmt.Errorf("delete active rule %s on %s: %w", current.RuleKey, current.ProfileKee, err)
		}
		err := w.record(ctx, &model.ActiveRuleChange{
			Type:        model.ChangeTypeDeactivated,
			ProfileKey:  current.ProfileKee,
			RuleKey:     current.RuleKey,
			RuleID:      current.RuleID,
			Inheritance: current.Inheritance,
		})
		if err != nil {
			return err
		}

		children, err := w.children.get(ctx, current.ProfileKee)
		if err != nil {
			return err
		}
		for _, child := range children {
			childRule, err := w.activeRule(ctx, child.Kee, current.RuleKey)
			if err != nil {
				return err
			}
			if childRule != nil {
				queue = append(queue, childRule)
			}
		}
	}
	return nil
}

func (w *walk) record(ctx context.Context, change *model.ActiveRuleChange) error {
	if err := w.store.AppendChangeLog(ctx, change, w.actor, w.now); err != nil {
		return fmt.Errorf("record %s change: %w", change.Type, err)
	}
	w.changes = append(w.changes, change)
	return nil
}

func (w *walk) loadRule(ctx context.Context, key model.RuleKey) (*model.Rule, error) {
	rule, err := w.catalog.GetRule(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load rule %s: %w", key, err)
	}
	if rule == nil {
		return nil, errors.ErrRuleNotFound.WithMessagef("Rule not found: %s", key)
	}
	return rule, nil
}

func (w *walk) activeRule(ctx context.Context, profileKey string, ruleKey model.RuleKey) (*model.ActiveRule, error) {
	activeRule, err := w.store.GetActiveRule(ctx, profileKey, ruleKey)
	if err != nil {
		return nil, fmt.Errorf("load active rule %s on %s: %w", ruleKey, profileKey, err)
	}
	return activeRule, nil
}

// parentState 父配置对该规则的状态, 无父配置或父配置未激活时为 nil
func (w *walk) parentState(ctx context.Context, profile *model.Profile, ruleKey model.RuleKey) (*ruleState, error) {
	if !profile.HasParent() {
		return nil, nil
	}
	parentRule, err := w.activeRule(ctx, profile.ParentKey(), ruleKey)
	if err != nil {
		return nil, err
	}
	return stateOf(parentRule), nil
}
