// Package repotest 提供基于内存 SQLite 的测试数据库和数据构造
package repotest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/repository"
)

var testDBCounter int64

// NewDB 每个测试使用独立的内存库
func NewDB(t testing.TB) *gorm.DB {
	counter := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:qprofile_testdb%d?mode=memory&cache=shared", counter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.Models()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewStore 创建测试用激活存储
func NewStore(t testing.TB) *repository.ActivationStore {
	return repository.NewActivationStore(repository.NewRepository(NewDB(t)))
}

// StrPtr 返回字符串指针
func StrPtr(s string) *string {
	return &s
}

// RuleOption 规则构造选项
type RuleOption func(*model.Rule)

// WithParam 声明参数
func WithParam(name, paramType string, defaultValue *string) RuleOption {
	return func(r *model.Rule) {
		r.Params = append(r.Params, &model.RuleParam{Name: name, Type: paramType, DefaultValue: defaultValue})
	}
}

// WithStatus 设置规则状态
func WithStatus(status model.RuleStatus) RuleOption {
	return func(r *model.Rule) { r.Status = status }
}

// AsTemplate 标记为模板
func AsTemplate() RuleOption {
	return func(r *model.Rule) { r.IsTemplate = true }
}

// FromTemplate 标记为模板派生的自定义规则
func FromTemplate(templateKey model.RuleKey) RuleOption {
	return func(r *model.Rule) { r.TemplateKey = string(templateKey) }
}

// CreateRule 插入规则
func CreateRule(t testing.TB, store *repository.ActivationStore, key model.RuleKey, language string, severity model.Severity, opts ...RuleOption) *model.Rule {
	rule := &model.Rule{
		RuleKey:  key,
		Name:     key.Key(),
		Language: language,
		Status:   model.RuleStatusReady,
		Severity: severity,
	}
	for _, opt := range opts {
		opt(rule)
	}
	require.NoError(t, store.Rules.Create(context.Background(), rule))
	return rule
}

// CreateProfile 插入配置, parent 为空表示根配置
func CreateProfile(t testing.TB, store *repository.ActivationStore, name, language string, parent *model.Profile) *model.Profile {
	profile := &model.Profile{Name: name, Language: language}
	if parent != nil {
		profile.ParentKee = StrPtr(parent.Kee)
	}
	require.NoError(t, store.CreateProfile(context.Background(), profile))
	return profile
}

// CreateBuiltInProfile 插入内置配置
func CreateBuiltInProfile(t testing.TB, store *repository.ActivationStore, name, language string) *model.Profile {
	profile := &model.Profile{Name: name, Language: language, IsBuiltIn: true}
	require.NoError(t, store.CreateProfile(context.Background(), profile))
	return profile
}

// InsertActiveRule 直接写入激活规则, 不经过激活引擎
func InsertActiveRule(t testing.TB, store *repository.ActivationStore, profile *model.Profile, rule *model.Rule, severity model.Severity, inheritance model.Inheritance, params map[string]string) *model.ActiveRule {
	activeRule := &model.ActiveRule{
		ProfileKee:  profile.Kee,
		RuleKey:     rule.RuleKey,
		RuleID:      rule.ID,
		Severity:    severity,
		Inheritance: inheritance,
		CreatedAt:   1,
		UpdatedAt:   1,
	}
	activeRule.SetParams(params)
	require.NoError(t, store.UpsertActiveRule(context.Background(), activeRule))
	return activeRule
}
