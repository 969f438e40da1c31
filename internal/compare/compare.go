// Package compare 比较两个质量配置的激活规则
package compare

import (
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

// Result 比较结果, 均以规则标识为键
type Result struct {
	Same     map[model.RuleKey]*model.ActiveRule
	InLeft   map[model.RuleKey]*model.ActiveRule
	InRight  map[model.RuleKey]*model.ActiveRule
	Modified map[model.RuleKey]*Difference
}

// Difference 两侧都激活但取值不同
type Difference struct {
	LeftSeverity  model.Severity
	RightSeverity model.Severity
	Params        ParamDifference
}

// SeverityChanged 严重级别是否不同
func (d *Difference) SeverityChanged() bool {
	return d.LeftSeverity != d.RightSeverity
}

// ValuePair 同一参数在两侧的取值
type ValuePair struct {
	Left  string
	Right string
}

// ParamDifference 参数差异
type ParamDifference struct {
	Differing map[string]ValuePair
	OnlyLeft  map[string]string
	OnlyRight map[string]string
}

// IsEmpty 参数是否完全一致
func (d ParamDifference) IsEmpty() bool {
	return len(d.Differing) == 0 && len(d.OnlyLeft) == 0 && len(d.OnlyRight) == 0
}

// Compare 比较两侧各自的激活规则, 不考虑继承状态
func Compare(left, right []*model.ActiveRule) *Result {
	result := &Result{
		Same:     make(map[model.RuleKey]*model.ActiveRule),
		InLeft:   make(map[model.RuleKey]*model.ActiveRule),
		InRight:  make(map[model.RuleKey]*model.ActiveRule),
		Modified: make(map[model.RuleKey]*Difference),
	}

	rightByKey := make(map[model.RuleKey]*model.ActiveRule, len(right))
	for _, ar := range right {
		rightByKey[ar.RuleKey] = ar
	}

	for _, l := range left {
		r, ok := rightByKey[l.RuleKey]
		if !ok {
			result.InLeft[l.RuleKey] = l
			continue
		}
		delete(rightByKey, l.RuleKey)

		params := diffParams(l.ParamMap(), r.ParamMap())
		if l.Severity == r.Severity && params.IsEmpty() {
			result.Same[l.RuleKey] = l
			continue
		}
		result.Modified[l.RuleKey] = &Difference{
			LeftSeverity:  l.Severity,
			RightSeverity: r.Severity,
			Params:        params,
		}
	}
	for key, r := range rightByKey {
		result.InRight[key] = r
	}
	return result
}

func diffParams(left, right map[string]string) ParamDifference {
	diff := ParamDifference{
		Differing: make(map[string]ValuePair),
		OnlyLeft:  make(map[string]string),
		OnlyRight: make(map[string]string),
	}
	for name, l := range left {
		r, ok := right[name]
		switch {
		case !ok:
			diff.OnlyLeft[name] = l
		case l != r:
			diff.Differing[name] = ValuePair{Left: l, Right: r}
		}
	}
	for name, r := range right {
		if _, ok := left[name]; !ok {
			diff.OnlyRight[name] = r
		}
	}
	return diff
}
