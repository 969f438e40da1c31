package activation

import (
	"context"

	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/logger"
)

// BulkActivate 对匹配的每条规则分别执行激活, 每条规则单独提交
// 业务错误计入失败数并继续, 存储错误中止批处理, 已提交的规则保留
func (a *Activator) BulkActivate(ctx context.Context, profileKey string, query model.RuleQuery, severity model.Severity, actor model.Actor) (*BulkChangeResult, error) {
	if severity != "" && !severity.IsValid() {
		return nil, errors.ErrInvalidSeverity.WithMessagef("Invalid severity: %s", severity)
	}
	return a.bulk(ctx, profileKey, query, actor, func(ctx context.Context, w *walk, profile *model.Profile, rule *model.Rule) error {
		return w.activate(ctx, profile, RuleActivation{RuleKey: rule.RuleKey, Severity: severity})
	})
}

// BulkDeactivate 对匹配的每条规则分别执行停用
func (a *Activator) BulkDeactivate(ctx context.Context, profileKey string, query model.RuleQuery, actor model.Actor) (*BulkChangeResult, error) {
	return a.bulk(ctx, profileKey, query, actor, func(ctx context.Context, w *walk, profile *model.Profile, rule *model.Rule) error {
		return w.deactivateRule(ctx, profile, rule.RuleKey)
	})
}

type bulkItemFunc func(ctx context.Context, w *walk, profile *model.Profile, rule *model.Rule) error

func (a *Activator) bulk(ctx context.Context, profileKey string, query model.RuleQuery, actor model.Actor, fn bulkItemFunc) (*BulkChangeResult, error) {
	profile, err := a.loadEditableProfile(ctx, profileKey)
	if err != nil {
		return nil, err
	}

	result := &BulkChangeResult{}
	children := newChildrenCache(a.store)
	for page := 1; ; page++ {
		rules, err := a.source.FindRules(ctx, query, page, a.pageSize)
		if err != nil {
			return result, err
		}
		// 规则源可能限制每页数量, 以空页作为结束
		if len(rules) == 0 {
			break
		}
		for _, rule := range rules {
			w := a.newWalk(actor, children)
			err := a.tx.Transaction(ctx, func(ctx context.Context) error {
				return fn(ctx, w, profile, rule)
			})
			if err == nil {
				result.Succeeded++
				result.Changes = append(result.Changes, w.changes...)
				continue
			}
			if !errors.IsBusiness(err) {
				return result, err
			}
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{RuleKey: rule.RuleKey, Err: err})
			logger.Debug("bulk item failed",
				zap.String("profile_key", profileKey),
				zap.String("rule_key", rule.RuleKey.String()),
				zap.Error(err),
			)
		}
	}
	return result, nil
}
