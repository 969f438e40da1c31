package model

// Inheritance 继承状态
type Inheritance string

const (
	InheritanceNone      Inheritance = "NONE"      // 父配置未激活该规则
	InheritanceInherited Inheritance = "INHERITED" // 与父配置一致
	InheritanceOverrides Inheritance = "OVERRIDES" // 与父配置不一致
)

// ActiveRule 配置上激活的规则
type ActiveRule struct {
	ID          int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileKee  string             `gorm:"type:varchar(64);uniqueIndex:idx_active_rules_profile_rule;not null" json:"profile_key"`
	RuleKey     RuleKey            `gorm:"type:varchar(200);uniqueIndex:idx_active_rules_profile_rule;index;not null" json:"rule_key"`
	RuleID      int64              `gorm:"not null" json:"rule_id"`
	Severity    Severity           `gorm:"type:varchar(10);not null" json:"severity"`
	Inheritance Inheritance        `gorm:"type:varchar(10);not null;default:NONE" json:"inheritance"`
	Params      []*ActiveRuleParam `gorm:"foreignKey:ActiveRuleID" json:"params"`
	CreatedAt   int64              `gorm:"type:bigint;not null" json:"created_at"`
	UpdatedAt   int64              `gorm:"type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (ActiveRule) TableName() string {
	return "active_rules"
}

// ParamMap 参数转为 map
func (a *ActiveRule) ParamMap() map[string]string {
	params := make(map[string]string, len(a.Params))
	for _, p := range a.Params {
		params[p.Name] = p.Value
	}
	return params
}

// SetParams 以 map 替换参数
func (a *ActiveRule) SetParams(params map[string]string) {
	a.Params = make([]*ActiveRuleParam, 0, len(params))
	for name, value := range params {
		a.Params = append(a.Params, &ActiveRuleParam{Name: name, Value: value})
	}
}

// ActiveRuleParam 激活规则的参数值
type ActiveRuleParam struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ActiveRuleID int64  `gorm:"index;not null" json:"active_rule_id"`
	Name         string `gorm:"type:varchar(128);not null" json:"name"`
	Value        string `gorm:"type:varchar(4000)" json:"value"`
}

// TableName 返回表名
func (ActiveRuleParam) TableName() string {
	return "active_rule_params"
}

// EqualParams 比较两个参数 map
func EqualParams(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
