// Package activation 规则激活与继承传播引擎
//
// 一次激活/停用/重置在单个存储事务中完成, 变更沿配置树向下传播,
// 遇到已覆盖 (OVERRIDES) 的子配置停止.
package activation

import (
	"context"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

// RuleActivation 激活请求
type RuleActivation struct {
	RuleKey  model.RuleKey
	Severity model.Severity    // 为空表示未指定
	Params   map[string]string // 空字符串表示清除覆盖, 回退到默认值
	Reset    bool              // 忽略请求中的严重级别和参数
}

// ResetActivation 构造重置请求
func ResetActivation(ruleKey model.RuleKey) RuleActivation {
	return RuleActivation{RuleKey: ruleKey, Reset: true}
}

// RuleCatalog 规则目录, 不存在时返回 nil, nil
type RuleCatalog interface {
	GetRule(ctx context.Context, key model.RuleKey) (*model.Rule, error)
}

// RuleSource 批量操作的规则来源
type RuleSource interface {
	FindRules(ctx context.Context, query model.RuleQuery, page, pageSize int) ([]*model.Rule, error)
}

// Transactor 事务执行器, 已在事务中时加入当前事务
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store 激活存储, 查询不到时返回 nil, nil
type Store interface {
	GetProfile(ctx context.Context, key string) (*model.Profile, error)
	ListChildren(ctx context.Context, key string) ([]*model.Profile, error)
	SetParent(ctx context.Context, key string, parentKey *string) error

	GetActiveRule(ctx context.Context, profileKey string, ruleKey model.RuleKey) (*model.ActiveRule, error)
	ListActiveRules(ctx context.Context, profileKey string) ([]*model.ActiveRule, error)
	UpsertActiveRule(ctx context.Context, activeRule *model.ActiveRule) error
	DeleteActiveRule(ctx context.Context, profileKey string, ruleKey model.RuleKey) error

	AppendChangeLog(ctx context.Context, change *model.ActiveRuleChange, actor model.Actor, now int64) error
}

// BulkChangeResult 批量操作结果
type BulkChangeResult struct {
	Succeeded int
	Failed    int
	Changes   []*model.ActiveRuleChange
	Errors    []BulkItemError
}

// BulkItemError 单条规则的失败原因
type BulkItemError struct {
	RuleKey model.RuleKey
	Err     error
}
