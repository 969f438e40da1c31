// Package service 质量配置服务
//
// 每个顶层操作在一个存储事务中完成, 提交后再写索引和发送通知.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/activation"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/builtin"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/compare"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/metrics"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/repository"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/logger"
)

// Indexer 激活规则搜索索引
type Indexer interface {
	IndexChanges(ctx context.Context, changes []*model.ActiveRuleChange) error
	IndexProfile(ctx context.Context, profileKey string, activeRules []*model.ActiveRule) error
	DeleteByProfileKeys(ctx context.Context, profileKeys []string) error
}

// Notifier 内置配置变更通知
type Notifier interface {
	Enabled() bool
	NotifyBuiltInChanges(ctx context.Context, changes model.ProfileChanges, start, end int64) error
}

// Config 服务配置
type Config struct {
	PropagateBuiltIn bool // 内置配置同步后向子配置传播
	BulkPageSize     int
}

// QualityProfileService 质量配置服务
type QualityProfileService struct {
	store        *repository.ActivationStore
	activator    *activation.Activator
	synchronizer *builtin.Synchronizer
	indexer      Indexer
	notifier     Notifier
	cfg          Config
	now          func() int64
}

// NewQualityProfileService 创建质量配置服务, notifier 可为 nil
func NewQualityProfileService(store *repository.ActivationStore, indexer Indexer, notifier Notifier, cfg Config) *QualityProfileService {
	activator := activation.NewActivator(store, store, store, store)
	activator.SetBulkPageSize(cfg.BulkPageSize)

	return &QualityProfileService{
		store:        store,
		activator:    activator,
		synchronizer: builtin.NewSynchronizer(store, store, store),
		indexer:      indexer,
		notifier:     notifier,
		cfg:          cfg,
		now:          func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock 替换时钟
func (s *QualityProfileService) SetClock(now func() int64) {
	s.now = now
	s.activator.SetClock(now)
	s.synchronizer.SetClock(now)
}

// Activate 激活或更新规则
func (s *QualityProfileService) Activate(ctx context.Context, profileKey string, req activation.RuleActivation, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	start := time.Now()
	changes, err := s.activator.Activate(ctx, profileKey, req, actor)
	s.finish(ctx, "activate", start, changes, err,
		zap.String("profile_key", profileKey),
		zap.String("rule_key", req.RuleKey.String()),
	)
	return changes, err
}

// Reset 把规则重置为父配置或默认值
func (s *QualityProfileService) Reset(ctx context.Context, profileKey string, ruleKey model.RuleKey, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	start := time.Now()
	changes, err := s.activator.Reset(ctx, profileKey, ruleKey, actor)
	s.finish(ctx, "reset", start, changes, err,
		zap.String("profile_key", profileKey),
		zap.String("rule_key", ruleKey.String()),
	)
	return changes, err
}

// Deactivate 停用规则
func (s *QualityProfileService) Deactivate(ctx context.Context, profileKey string, ruleKey model.RuleKey, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	start := time.Now()
	changes, err := s.activator.Deactivate(ctx, profileKey, ruleKey, actor)
	s.finish(ctx, "deactivate", start, changes, err,
		zap.String("profile_key", profileKey),
		zap.String("rule_key", ruleKey.String()),
	)
	return changes, err
}

// BulkActivate 批量激活, 已提交的部分结果在出错时同样返回
func (s *QualityProfileService) BulkActivate(ctx context.Context, profileKey string, query model.RuleQuery, severity model.Severity, actor model.Actor) (*activation.BulkChangeResult, error) {
	start := time.Now()
	result, err := s.activator.BulkActivate(ctx, profileKey, query, severity, actor)
	s.finishBulk(ctx, "bulk_activate", start, profileKey, result, err)
	return result, err
}

// BulkDeactivate 批量停用
func (s *QualityProfileService) BulkDeactivate(ctx context.Context, profileKey string, query model.RuleQuery, actor model.Actor) (*activation.BulkChangeResult, error) {
	start := time.Now()
	result, err := s.activator.BulkDeactivate(ctx, profileKey, query, actor)
	s.finishBulk(ctx, "bulk_deactivate", start, profileKey, result, err)
	return result, err
}

// SetParent 设置父配置
func (s *QualityProfileService) SetParent(ctx context.Context, profileKey, parentKey string, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	start := time.Now()
	changes, err := s.activator.SetParent(ctx, profileKey, parentKey, actor)
	s.finish(ctx, "set_parent", start, changes, err,
		zap.String("profile_key", profileKey),
		zap.String("parent_key", parentKey),
	)
	return changes, err
}

// RemoveParent 解除父配置
func (s *QualityProfileService) RemoveParent(ctx context.Context, profileKey string, actor model.Actor) ([]*model.ActiveRuleChange, error) {
	start := time.Now()
	changes, err := s.activator.RemoveParent(ctx, profileKey, actor)
	s.finish(ctx, "remove_parent", start, changes, err, zap.String("profile_key", profileKey))
	return changes, err
}

// CreateProfile 创建配置, parentKey 非空时继承父配置的全部规则
func (s *QualityProfileService) CreateProfile(ctx context.Context, name, language, parentKey string, actor model.Actor) (*model.Profile, []*model.ActiveRuleChange, error) {
	if name == "" || language == "" {
		return nil, nil, errors.ErrInvalidProfile.WithMessagef("Quality profile requires a name and a language")
	}

	start := time.Now()
	profile := &model.Profile{Name: name, Language: language}
	var changes []*model.ActiveRuleChange
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.store.FindProfile(ctx, language, name)
		if err != nil {
			return fmt.Errorf("find profile %s/%s: %w", language, name, err)
		}
		if existing != nil {
			return errors.ErrProfileExists.WithMessagef("Quality profile already exists: %s/%s", language, name)
		}
		if err := s.store.CreateProfile(ctx, profile); err != nil {
			if stderrors.Is(err, repository.ErrProfileDuplicate) {
				return errors.ErrProfileExists.WithMessagef("Quality profile already exists: %s/%s", language, name)
			}
			return fmt.Errorf("create profile %s/%s: %w", language, name, err)
		}
		if parentKey == "" {
			return nil
		}
		changes, err = s.activator.SetParent(ctx, profile.Kee, parentKey, actor)
		return err
	})
	s.finish(ctx, "create_profile", start, changes, err,
		zap.String("profile", language+"/"+name),
		zap.String("parent_key", parentKey),
	)
	if err != nil {
		return nil, nil, err
	}
	return profile, changes, nil
}

// DeleteProfile 删除配置及其全部子孙配置, 变更日志保留
func (s *QualityProfileService) DeleteProfile(ctx context.Context, profileKey string) ([]string, error) {
	start := time.Now()
	var deleted []string
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		profile, err := s.loadProfile(ctx, profileKey)
		if err != nil {
			return err
		}
		if profile.IsBuiltIn {
			return errors.ErrBuiltInReadOnly.WithMessagef("Built-in quality profile %s can't be deleted", profile.Name)
		}
		keys, err := s.descendants(ctx, profile.Kee)
		if err != nil {
			return err
		}
		keys = append([]string{profile.Kee}, keys...)
		if err := s.store.ActiveRules.DeleteByProfiles(ctx, keys); err != nil {
			return fmt.Errorf("delete active rules: %w", err)
		}
		if err := s.store.Profiles.DeleteByKeys(ctx, keys); err != nil {
			return fmt.Errorf("delete profiles: %w", err)
		}
		deleted = keys
		return nil
	})
	s.observe("delete_profile", start, err)
	if err != nil {
		return nil, err
	}

	if s.indexer != nil {
		if err := s.indexer.DeleteByProfileKeys(ctx, deleted); err != nil {
			s.indexFailed(err, zap.Strings("profile_keys", deleted))
		}
	}
	logger.Info("quality profiles deleted", zap.Strings("profile_keys", deleted))
	return deleted, nil
}

// descendants 广度优先收集子孙配置
func (s *QualityProfileService) descendants(ctx context.Context, key string) ([]string, error) {
	var keys []string
	queue := []string{key}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := s.store.ListChildren(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", current, err)
		}
		for _, child := range children {
			keys = append(keys, child.Kee)
			queue = append(queue, child.Kee)
		}
	}
	return keys, nil
}

// ListChanges 查询配置的变更日志
func (s *QualityProfileService) ListChanges(ctx context.Context, profileKey string, tr *repository.TimeRange, pagination *repository.Pagination) ([]*model.ChangeLog, int64, error) {
	if _, err := s.loadProfile(ctx, profileKey); err != nil {
		return nil, 0, err
	}
	if pagination == nil {
		pagination = repository.NewPagination(1, 20)
	}
	return s.store.Changes.ListByProfile(ctx, profileKey, tr, pagination)
}

// ListActiveRules 查询配置的激活规则
func (s *QualityProfileService) ListActiveRules(ctx context.Context, profileKey string) ([]*model.ActiveRule, error) {
	if _, err := s.loadProfile(ctx, profileKey); err != nil {
		return nil, err
	}
	return s.store.ListActiveRules(ctx, profileKey)
}

// CompareProfiles 比较两个同语言配置
func (s *QualityProfileService) CompareProfiles(ctx context.Context, leftKey, rightKey string) (*compare.Result, error) {
	left, err := s.loadProfile(ctx, leftKey)
	if err != nil {
		return nil, err
	}
	right, err := s.loadProfile(ctx, rightKey)
	if err != nil {
		return nil, err
	}
	if left.Language != right.Language {
		return nil, errors.ErrLanguageMismatch.WithMessagef(
			"Cannot compare quality profiles of different languages: %s and %s", left.Language, right.Language)
	}

	leftRules, err := s.store.ListActiveRules(ctx, left.Kee)
	if err != nil {
		return nil, fmt.Errorf("list active rules of %s: %w", left.Kee, err)
	}
	rightRules, err := s.store.ListActiveRules(ctx, right.Kee)
	if err != nil {
		return nil, fmt.Errorf("list active rules of %s: %w", right.Kee, err)
	}
	return compare.Compare(leftRules, rightRules), nil
}

// ReindexProfile 用存储中的激活规则重建配置索引
func (s *QualityProfileService) ReindexProfile(ctx context.Context, profileKey string) error {
	if s.indexer == nil {
		return nil
	}
	if _, err := s.loadProfile(ctx, profileKey); err != nil {
		return err
	}
	activeRules, err := s.store.ListActiveRules(ctx, profileKey)
	if err != nil {
		return fmt.Errorf("list active rules of %s: %w", profileKey, err)
	}
	return s.indexer.IndexProfile(ctx, profileKey, activeRules)
}

func (s *QualityProfileService) loadProfile(ctx context.Context, key string) (*model.Profile, error) {
	profile, err := s.store.GetProfile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", key, err)
	}
	if profile == nil {
		return nil, errors.ErrProfileNotFound.WithMessagef("Quality profile not found: %s", key)
	}
	return profile, nil
}

// finish 记录指标, 提交成功后写索引
func (s *QualityProfileService) finish(ctx context.Context, operation string, start time.Time, changes []*model.ActiveRuleChange, err error, fields ...zap.Field) {
	s.observe(operation, start, err)
	if err != nil {
		return
	}
	s.index(ctx, changes)
	logger.Info("quality profile operation committed",
		append(fields, zap.String("operation", operation), zap.Int("changes", len(changes)))...)
}

func (s *QualityProfileService) finishBulk(ctx context.Context, operation string, start time.Time, profileKey string, result *activation.BulkChangeResult, err error) {
	s.observe(operation, start, err)
	if result == nil {
		return
	}
	metrics.RecordBulk(operation, result.Succeeded, result.Failed)
	s.index(ctx, result.Changes)
	logger.Info("bulk operation finished",
		zap.String("operation", operation),
		zap.String("profile_key", profileKey),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Bool("aborted", err != nil),
	)
}

func (s *QualityProfileService) index(ctx context.Context, changes []*model.ActiveRuleChange) {
	for _, change := range changes {
		metrics.RecordChange(string(change.Type))
	}
	if s.indexer == nil || len(changes) == 0 {
		return
	}
	if err := s.indexer.IndexChanges(ctx, changes); err != nil {
		s.indexFailed(err, zap.Int("changes", len(changes)))
	}
}

// indexFailed 索引失败不回滚已提交的变更, 通过 ReindexProfile 修复
func (s *QualityProfileService) indexFailed(err error, fields ...zap.Field) {
	metrics.RecordIndexError()
	logger.Error("failed to update active rule index", append(fields, zap.Error(err))...)
}

func (s *QualityProfileService) observe(operation string, start time.Time, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.IsBusiness(err):
		result = "rejected"
	default:
		result = "error"
		logger.Error("quality profile operation failed", zap.String("operation", operation), zap.Error(err))
	}
	metrics.RecordOperation(operation, result, time.Since(start).Seconds())
}
