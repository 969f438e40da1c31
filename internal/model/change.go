package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// ChangeType 变更类型
type ChangeType string

const (
	ChangeTypeActivated   ChangeType = "ACTIVATED"
	ChangeTypeUpdated     ChangeType = "UPDATED"
	ChangeTypeDeactivated ChangeType = "DEACTIVATED"
)

// ActiveRuleChange 一次激活/更新/停用产生的变更记录
type ActiveRuleChange struct {
	Type        ChangeType        `json:"type"`
	ProfileKey  string            `json:"profile_key"`
	RuleKey     RuleKey           `json:"rule_key"`
	RuleID      int64             `json:"rule_id"`
	Severity    Severity          `json:"severity,omitempty"` // DEACTIVATED 时为空
	Inheritance Inheritance       `json:"inheritance"`
	Params      map[string]string `json:"params,omitempty"`
}

const paramPrefix = "param_"

// ToChangeLog 转换为持久化的变更日志
func (c *ActiveRuleChange) ToChangeLog(kee string, actor Actor, now int64) *ChangeLog {
	log := &ChangeLog{
		Kee:         kee,
		ProfileKee:  c.ProfileKey,
		ChangeType:  c.Type,
		RuleKey:     c.RuleKey,
		RuleID:      c.RuleID,
		Inheritance: c.Inheritance,
		CreatedAt:   now,
	}
	if !actor.IsSystem() {
		userID := actor.UserID
		log.ActorID = &userID
	}
	if c.Severity != "" {
		severity := string(c.Severity)
		log.Severity = &severity
	}
	data := make(map[string]string, len(c.Params))
	for name, value := range c.Params {
		data[paramPrefix+name] = value
	}
	raw, _ := json.Marshal(data)
	log.Data = string(raw)
	return log
}

// ChangeLog 变更日志, 审计用
type ChangeLog struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Kee         string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	ProfileKee  string      `gorm:"type:varchar(64);index:idx_qprofile_changes_profile_time;not null" json:"profile_key"`
	ChangeType  ChangeType  `gorm:"type:varchar(20);not null" json:"change_type"`
	ActorID     *string     `gorm:"type:varchar(64)" json:"actor_id,omitempty"`
	RuleKey     RuleKey     `gorm:"type:varchar(200);not null" json:"rule_key"`
	RuleID      int64       `gorm:"not null" json:"rule_id"`
	Severity    *string     `gorm:"type:varchar(10)" json:"severity,omitempty"`
	Inheritance Inheritance `gorm:"type:varchar(10)" json:"inheritance"`
	Data        string      `gorm:"type:text" json:"data"`
	CreatedAt   int64       `gorm:"type:bigint;index:idx_qprofile_changes_profile_time;not null" json:"created_at"`
}

// TableName 返回表名
func (ChangeLog) TableName() string {
	return "qprofile_changes"
}

// Params 解析 data 中的参数
func (l *ChangeLog) Params() map[string]string {
	var data map[string]string
	if l.Data == "" || json.Unmarshal([]byte(l.Data), &data) != nil {
		return map[string]string{}
	}
	params := make(map[string]string, len(data))
	for k, v := range data {
		if strings.HasPrefix(k, paramPrefix) {
			params[strings.TrimPrefix(k, paramPrefix)] = v
		}
	}
	return params
}

// ProfileIdentity 通知中标识配置
type ProfileIdentity struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// ProfileChanges 配置到变更列表的多重映射
type ProfileChanges map[ProfileIdentity][]*ActiveRuleChange

// Add 追加变更
func (pc ProfileChanges) Add(profile ProfileIdentity, changes ...*ActiveRuleChange) {
	pc[profile] = append(pc[profile], changes...)
}

// Len 变更总数
func (pc ProfileChanges) Len() int {
	n := 0
	for _, changes := range pc {
		n += len(changes)
	}
	return n
}

// Profiles 按名称排序的配置列表
func (pc ProfileChanges) Profiles() []ProfileIdentity {
	profiles := make([]ProfileIdentity, 0, len(pc))
	for p := range pc {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Name != profiles[j].Name {
			return profiles[i].Name < profiles[j].Name
		}
		return profiles[i].Key < profiles[j].Key
	})
	return profiles
}

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&Rule{}, &RuleParam{}, &Profile{}, &ActiveRule{}, &ActiveRuleParam{}, &ChangeLog{},
	}
}
