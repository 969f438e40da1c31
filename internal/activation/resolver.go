package activation

import (
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
)

// ruleState 激活规则的严重级别和参数
type ruleState struct {
	severity model.Severity
	params   map[string]string
}

func stateOf(activeRule *model.ActiveRule) *ruleState {
	if activeRule == nil {
		return nil
	}
	return &ruleState{severity: activeRule.Severity, params: activeRule.ParamMap()}
}

func (s *ruleState) equal(o *ruleState) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.severity == o.severity && model.EqualParams(s.params, o.params)
}

func (s *ruleState) copy() ruleState {
	params := make(map[string]string, len(s.params))
	for k, v := range s.params {
		params[k] = v
	}
	return ruleState{severity: s.severity, params: params}
}

// target 解析出的目标状态
type target struct {
	ruleState
	inheritance model.Inheritance
}

// sameAs 与当前行一致时无需写入
func (t *target) sameAs(current *model.ActiveRule) bool {
	if current == nil {
		return false
	}
	return t.inheritance == current.Inheritance && t.equal(stateOf(current))
}

// inheritanceOf parent 为父配置对该规则的状态, 父配置未激活时为 nil
func inheritanceOf(state, parent *ruleState) model.Inheritance {
	if parent == nil {
		return model.InheritanceNone
	}
	if state.equal(parent) {
		return model.InheritanceInherited
	}
	return model.InheritanceOverrides
}

// resolveRequest 根据请求、当前行和父配置状态计算目标状态
func resolveRequest(rule *model.Rule, req RuleActivation, current *model.ActiveRule, parent *ruleState) (*target, error) {
	severity, err := resolveSeverity(rule, req, current, parent)
	if err != nil {
		return nil, err
	}
	params, err := resolveParams(rule, req, current, parent)
	if err != nil {
		return nil, err
	}
	state := ruleState{severity: severity, params: params}
	return &target{ruleState: state, inheritance: inheritanceOf(&state, parent)}, nil
}

func resolveSeverity(rule *model.Rule, req RuleActivation, current *model.ActiveRule, parent *ruleState) (model.Severity, error) {
	switch {
	case req.Reset:
		if parent != nil {
			return parent.severity, nil
		}
		return rule.Severity, nil
	case req.Severity != "":
		if !req.Severity.IsValid() {
			return "", errors.ErrInvalidSeverity.WithMessagef("Invalid severity: %s", req.Severity)
		}
		return req.Severity, nil
	case current != nil:
		return current.Severity, nil
	default:
		return rule.Severity, nil
	}
}

func resolveParams(rule *model.Rule, req RuleActivation, current *model.ActiveRule, parent *ruleState) (map[string]string, error) {
	// 模板派生规则的参数在创建时确定
	if rule.IsCustomRule() {
		return rule.DefaultParams(), nil
	}
	if req.Reset {
		if parent != nil {
			return declaredOnly(rule, parent.params), nil
		}
		return rule.DefaultParams(), nil
	}

	var existing map[string]string
	if current != nil {
		existing = current.ParamMap()
	}
	params := make(map[string]string, len(rule.Params))
	for _, p := range rule.Params {
		if value, ok := req.Params[p.Name]; ok {
			if value == "" {
				if p.DefaultValue != nil {
					params[p.Name] = *p.DefaultValue
				}
				continue
			}
			if err := ValidateParam(p, value); err != nil {
				return nil, err
			}
			params[p.Name] = value
			continue
		}
		if value, ok := existing[p.Name]; ok {
			params[p.Name] = value
		} else if p.DefaultValue != nil {
			params[p.Name] = *p.DefaultValue
		}
	}
	return params, nil
}

// inherit 子配置继承父配置的新状态
func inherit(rule *model.Rule, parent *ruleState) *target {
	state := parent.copy()
	state.params = declaredOnly(rule, state.params)
	return &target{ruleState: state, inheritance: model.InheritanceInherited}
}

func declaredOnly(rule *model.Rule, params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for _, p := range rule.Params {
		if value, ok := params[p.Name]; ok {
			out[p.Name] = value
		}
	}
	return out
}
