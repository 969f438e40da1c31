package builtin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/activation"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/logger"
)

// Store 同步所需的存储操作
type Store interface {
	FindProfile(ctx context.Context, language, name string) (*model.Profile, error)
	CreateProfile(ctx context.Context, profile *model.Profile) error
	ListActiveRules(ctx context.Context, profileKey string) ([]*model.ActiveRule, error)
	UpsertActiveRule(ctx context.Context, activeRule *model.ActiveRule) error
	DeleteActiveRule(ctx context.Context, profileKey string, ruleKey model.RuleKey) error
	AppendChangeLog(ctx context.Context, change *model.ActiveRuleChange, actor model.Actor, now int64) error
}

// Result 同步结果
type Result struct {
	Profile *model.Profile
	Created bool
	Changes []*model.ActiveRuleChange
}

// Synchronizer 把声明的规则集与持久化的内置配置对齐
// 只修改内置根配置, 不向继承它的配置传播
type Synchronizer struct {
	catalog activation.RuleCatalog
	store   Store
	tx      activation.Transactor
	now     func() int64
}

// NewSynchronizer 创建同步器
func NewSynchronizer(catalog activation.RuleCatalog, store Store, tx activation.Transactor) *Synchronizer {
	return &Synchronizer{
		catalog: catalog,
		store:   store,
		tx:      tx,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock 替换时钟
func (s *Synchronizer) SetClock(now func() int64) {
	s.now = now
}

// target 声明解析后的目标行
type target struct {
	rule     *model.Rule
	severity model.Severity
	params   map[string]string
}

// Sync 计算差异并写入, 所有变更记为系统变更
func (s *Synchronizer) Sync(ctx context.Context, def Definition) (*Result, error) {
	if def.Language == "" || def.Name == "" {
		return nil, errors.ErrInvalidBuiltIn.WithMessagef("Built-in profile requires a language and a name")
	}

	var result *Result
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		profile, created, err := s.loadOrCreate(ctx, def)
		if err != nil {
			return err
		}
		targets, err := s.resolve(ctx, def)
		if err != nil {
			return err
		}
		persisted, err := s.store.ListActiveRules(ctx, profile.Kee)
		if err != nil {
			return fmt.Errorf("list active rules of %s: %w", profile.Kee, err)
		}

		changes, err := s.apply(ctx, profile, targets, persisted)
		if err != nil {
			return err
		}
		result = &Result{Profile: profile, Created: created, Changes: changes}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Synchronizer) loadOrCreate(ctx context.Context, def Definition) (*model.Profile, bool, error) {
	profile, err := s.store.FindProfile(ctx, def.Language, def.Name)
	if err != nil {
		return nil, false, fmt.Errorf("load built-in profile %s: %w", def.Identity(), err)
	}
	if profile == nil {
		profile = &model.Profile{Name: def.Name, Language: def.Language, IsBuiltIn: true}
		if err := s.store.CreateProfile(ctx, profile); err != nil {
			return nil, false, fmt.Errorf("create built-in profile %s: %w", def.Identity(), err)
		}
		logger.Info("built-in profile created", zap.String("profile", def.Identity()), zap.String("profile_key", profile.Kee))
		return profile, true, nil
	}
	if !profile.IsBuiltIn {
		return nil, false, errors.ErrProfileExists.WithMessagef("Quality profile %s exists and is not built-in", def.Identity())
	}
	if profile.HasParent() {
		return nil, false, errors.ErrInvalidBuiltIn.WithMessagef("Built-in profile %s can't have a parent", def.Identity())
	}
	return profile, false, nil
}

// resolve 按声明顺序解析目标行, 无效的声明跳过
func (s *Synchronizer) resolve(ctx context.Context, def Definition) ([]*target, error) {
	targets := make([]*target, 0, len(def.Rules))
	seen := make(map[model.RuleKey]bool, len(def.Rules))
	for _, decl := range def.Rules {
		if seen[decl.RuleKey] {
			skip(def, decl, "duplicate declaration")
			continue
		}
		seen[decl.RuleKey] = true

		rule, err := s.catalog.GetRule(ctx, decl.RuleKey)
		if err != nil {
			return nil, fmt.Errorf("load rule %s: %w", decl.RuleKey, err)
		}
		switch {
		case rule == nil:
			skip(def, decl, "rule not found")
			continue
		case rule.Status == model.RuleStatusRemoved:
			skip(def, decl, "rule removed")
			continue
		case rule.IsTemplate:
			skip(def, decl, "rule template")
			continue
		case rule.Language != def.Language:
			skip(def, decl, "language mismatch")
			continue
		}

		severity := decl.Severity
		if severity == "" {
			severity = rule.Severity
		}
		if !severity.IsValid() {
			skip(def, decl, "invalid severity")
			continue
		}
		params, err := declaredParams(rule, decl)
		if err != nil {
			skip(def, decl, err.Error())
			continue
		}
		targets = append(targets, &target{rule: rule, severity: severity, params: params})
	}
	return targets, nil
}

// declaredParams 规则默认值叠加声明的参数
func declaredParams(rule *model.Rule, decl DeclaredRule) (map[string]string, error) {
	params := rule.DefaultParams()
	if rule.IsCustomRule() {
		return params, nil
	}
	for name, value := range decl.Params {
		p := rule.Param(name)
		if p == nil {
			continue
		}
		if value == "" {
			delete(params, name)
			if p.DefaultValue != nil {
				params[name] = *p.DefaultValue
			}
			continue
		}
		if err := activation.ValidateParam(p, value); err != nil {
			return nil, err
		}
		params[name] = value
	}
	return params, nil
}

// apply 先按声明顺序激活/更新, 再按规则标识顺序停用未声明的规则
func (s *Synchronizer) apply(ctx context.Context, profile *model.Profile, targets []*target, persisted []*model.ActiveRule) ([]*model.ActiveRuleChange, error) {
	now := s.now()
	existing := make(map[model.RuleKey]*model.ActiveRule, len(persisted))
	for _, ar := range persisted {
		existing[ar.RuleKey] = ar
	}

	var changes []*model.ActiveRuleChange
	for _, t := range targets {
		current := existing[t.rule.RuleKey]
		delete(existing, t.rule.RuleKey)

		changeType := model.ChangeTypeUpdated
		if current == nil {
			changeType = model.ChangeTypeActivated
			current = &model.ActiveRule{
				ProfileKee: profile.Kee,
				RuleKey:    t.rule.RuleKey,
				RuleID:     t.rule.ID,
				CreatedAt:  now,
			}
		} else if current.Severity == t.severity && model.EqualParams(current.ParamMap(), t.params) && current.Inheritance == model.InheritanceNone {
			continue
		}
		current.Severity = t.severity
		current.Inheritance = model.InheritanceNone
		current.SetParams(t.params)
		current.UpdatedAt = now
		if err := s.store.UpsertActiveRule(ctx, current); err != nil {
			return nil, fmt.Errorf("upsert active rule %s: %w", t.rule.RuleKey, err)
		}
		changes = append(changes, &model.ActiveRuleChange{
			Type:        changeType,
			ProfileKey:  profile.Kee,
			RuleKey:     t.rule.RuleKey,
			RuleID:      t.rule.ID,
			Severity:    t.severity,
			Inheritance: model.InheritanceNone,
			Params:      t.params,
		})
	}

	removed := make([]*model.ActiveRule, 0, len(existing))
	for _, ar := range existing {
		removed = append(removed, ar)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].RuleKey < removed[j].RuleKey })
	for _, ar := range removed {
		if err := s.store.DeleteActiveRule(ctx, profile.Kee, ar.RuleKey); err != nil {
			return nil, fmt.Errorf("delete active rule %s: %w", ar.RuleKey, err)
		}
		changes = append(changes, &model.ActiveRuleChange{
			Type:        model.ChangeTypeDeactivated,
			ProfileKey:  profile.Kee,
			RuleKey:     ar.RuleKey,
			RuleID:      ar.RuleID,
			Inheritance: ar.Inheritance,
		})
	}

	for _, change := range changes {
		if err := s.store.AppendChangeLog(ctx, change, model.SystemActor(), now); err != nil {
			return nil, fmt.Errorf("record %s change: %w", change.Type, err)
		}
	}
	return changes, nil
}

func skip(def Definition, decl DeclaredRule, reason string) {
	logger.Warn("built-in rule declaration skipped",
		zap.String("profile", def.Identity()),
		zap.String("rule_key", decl.RuleKey.String()),
		zap.String("reason", reason),
	)
}
