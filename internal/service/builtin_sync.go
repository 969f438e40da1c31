package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/builtin"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/metrics"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/logger"
)

// SyncReport 内置配置同步报告
type SyncReport struct {
	Profiles   []*builtin.Result
	Changes    model.ProfileChanges
	Propagated []*model.ActiveRuleChange
	Failed     map[string]error // 被拒绝的声明, key 为 language/name
	StartDate  int64
	EndDate    int64
}

// SyncBuiltInFile 从声明文件加载并同步内置配置
func (s *QualityProfileService) SyncBuiltInFile(ctx context.Context, path string) (*SyncReport, error) {
	defs, err := builtin.LoadDefinitions(path)
	if err != nil {
		metrics.RecordBuiltInSync(false)
		return nil, err
	}
	return s.SyncBuiltIn(ctx, defs)
}

// SyncBuiltIn 逐个同步内置配置, 写索引后发送一次汇总通知
// 被拒绝的声明记入 Failed 并继续, 基础设施错误中止
func (s *QualityProfileService) SyncBuiltIn(ctx context.Context, defs []builtin.Definition) (*SyncReport, error) {
	report := &SyncReport{
		Changes:   model.ProfileChanges{},
		Failed:    make(map[string]error),
		StartDate: s.now(),
	}

	for _, def := range defs {
		result, err := s.synchronizer.Sync(ctx, def)
		if err != nil {
			if errors.IsBusiness(err) {
				logger.Warn("built-in profile rejected", zap.String("profile", def.Identity()), zap.Error(err))
				report.Failed[def.Identity()] = err
				continue
			}
			metrics.RecordBuiltInSync(false)
			return report, err
		}

		report.Profiles = append(report.Profiles, result)
		if len(result.Changes) == 0 {
			continue
		}
		identity := model.ProfileIdentity{Key: result.Profile.Kee, Name: result.Profile.Name, Language: result.Profile.Language}
		report.Changes.Add(identity, result.Changes...)
		for _, change := range result.Changes {
			metrics.RecordBuiltInChange(result.Profile.Language, string(change.Type))
		}
		s.index(ctx, result.Changes)

		if s.cfg.PropagateBuiltIn {
			propagated, err := s.propagate(ctx, result)
			report.Propagated = append(report.Propagated, propagated...)
			if err != nil {
				metrics.RecordBuiltInSync(false)
				return report, err
			}
		}
	}
	report.EndDate = s.now()

	s.notify(ctx, report)
	metrics.RecordBuiltInSync(true)
	logger.Info("built-in profiles synchronized",
		zap.Int("profiles", len(report.Profiles)),
		zap.Int("changes", report.Changes.Len()),
		zap.Int("propagated", len(report.Propagated)),
		zap.Int("rejected", len(report.Failed)),
	)
	return report, nil
}

// propagate 把内置配置的变更推给子孙配置, 每条规则一个事务
func (s *QualityProfileService) propagate(ctx context.Context, result *builtin.Result) ([]*model.ActiveRuleChange, error) {
	var all []*model.ActiveRuleChange
	for _, change := range result.Changes {
		changes, err := s.activator.Propagate(ctx, result.Profile.Kee, change.RuleKey, model.SystemActor())
		if err != nil {
			return all, err
		}
		s.index(ctx, changes)
		all = append(all, changes...)
	}
	return all, nil
}

func (s *QualityProfileService) notify(ctx context.Context, report *SyncReport) {
	if s.notifier == nil || !s.notifier.Enabled() || report.Changes.Len() == 0 {
		return
	}
	if err := s.notifier.NotifyBuiltInChanges(ctx, report.Changes, report.StartDate, report.EndDate); err != nil {
		metrics.RecordNotification(false)
		logger.Error("failed to notify built-in changes", zap.Error(err))
		return
	}
	metrics.RecordNotification(true)
}
