// Package model 定义质量配置服务的数据模型
package model

import (
	"fmt"
	"strings"
)

// RuleKey 规则唯一标识, 格式为 "<repository>:<key>"
type RuleKey string

// NewRuleKey 由规则仓库和规则键构造
func NewRuleKey(repository, key string) RuleKey {
	return RuleKey(repository + ":" + key)
}

// ParseRuleKey 解析 "<repository>:<key>" 形式的规则标识
func ParseRuleKey(s string) (RuleKey, error) {
	i := strings.Index(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", fmt.Errorf("invalid rule key %q", s)
	}
	return RuleKey(s), nil
}

// Repository 返回规则仓库部分
func (k RuleKey) Repository() string {
	if i := strings.Index(string(k), ":"); i >= 0 {
		return string(k)[:i]
	}
	return ""
}

// Key 返回规则键部分
func (k RuleKey) Key() string {
	if i := strings.Index(string(k), ":"); i >= 0 {
		return string(k)[i+1:]
	}
	return string(k)
}

func (k RuleKey) String() string {
	return string(k)
}

// RuleStatus 规则状态
type RuleStatus string

const (
	RuleStatusReady      RuleStatus = "READY"
	RuleStatusDeprecated RuleStatus = "DEPRECATED"
	RuleStatusRemoved    RuleStatus = "REMOVED"
)

// Severity 规则严重级别
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
	SeverityBlocker  Severity = "BLOCKER"
)

// Severities 按从低到高排列
var Severities = []Severity{SeverityInfo, SeverityMinor, SeverityMajor, SeverityCritical, SeverityBlocker}

// IsValid 检查严重级别是否合法
func (s Severity) IsValid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// Rule 规则定义, 对激活引擎只读
type Rule struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleKey     RuleKey      `gorm:"type:varchar(200);uniqueIndex;not null" json:"rule_key"`
	Repository  string       `gorm:"type:varchar(100);index;not null" json:"repository"`
	Name        string       `gorm:"type:varchar(200)" json:"name"`
	Language    string       `gorm:"type:varchar(20);index;not null" json:"language"`
	Status      RuleStatus   `gorm:"type:varchar(20);not null;default:READY" json:"status"`
	Severity    Severity     `gorm:"type:varchar(10);not null" json:"severity"` // 默认严重级别
	IsTemplate  bool         `gorm:"not null;default:false" json:"is_template"`
	TemplateKey string       `gorm:"type:varchar(200)" json:"template_key"` // 非空表示由模板实例化的自定义规则
	Params      []*RuleParam `gorm:"foreignKey:RuleID" json:"params"`
	CreatedAt   int64        `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt   int64        `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Rule) TableName() string {
	return "rules"
}

// IsCustomRule 是否为模板派生的自定义规则
func (r *Rule) IsCustomRule() bool {
	return r.TemplateKey != ""
}

// Param 按名称查找声明的参数
func (r *Rule) Param(name string) *RuleParam {
	for _, p := range r.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// DefaultParams 返回有默认值的参数
func (r *Rule) DefaultParams() map[string]string {
	params := make(map[string]string, len(r.Params))
	for _, p := range r.Params {
		if p.DefaultValue != nil {
			params[p.Name] = *p.DefaultValue
		}
	}
	return params
}

// RuleParam 规则声明的参数
type RuleParam struct {
	ID           int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID       int64   `gorm:"index;not null" json:"rule_id"`
	Name         string  `gorm:"type:varchar(128);not null" json:"name"`
	Type         string  `gorm:"type:varchar(512);not null;default:STRING" json:"type"`
	DefaultValue *string `gorm:"type:varchar(4000)" json:"default_value,omitempty"`
	Description  string  `gorm:"type:varchar(4000)" json:"description"`
	SortOrder    int     `gorm:"not null;default:0" json:"sort_order"`
}

// TableName 返回表名
func (RuleParam) TableName() string {
	return "rule_params"
}

// RuleQuery 批量操作的规则筛选条件
type RuleQuery struct {
	Repository string
	Language   string
	Statuses   []RuleStatus
	RuleKeys   []RuleKey
}
