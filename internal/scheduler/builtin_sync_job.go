package scheduler

import (
	"context"
	"time"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/service"
)

// BuiltInSyncer 内置配置同步
type BuiltInSyncer interface {
	SyncBuiltInFile(ctx context.Context, path string) (*service.SyncReport, error)
}

// BuiltInSyncJob 定时从声明文件同步内置配置
type BuiltInSyncJob struct {
	BaseJob
	syncer BuiltInSyncer
	path   string
}

// NewBuiltInSyncJob 创建内置配置同步任务
func NewBuiltInSyncJob(syncer BuiltInSyncer, path string, timeout, lockTTL time.Duration) *BuiltInSyncJob {
	return &BuiltInSyncJob{
		BaseJob: NewBaseJob(JobNameBuiltInSync, timeout, lockTTL),
		syncer:  syncer,
		path:    path,
	}
}

// Execute 执行同步
func (j *BuiltInSyncJob) Execute(ctx context.Context) (*JobResult, error) {
	report, err := j.syncer.SyncBuiltInFile(ctx, j.path)
	if err != nil {
		return nil, err
	}
	return &JobResult{
		ProcessedCount: len(report.Profiles) + len(report.Failed),
		AffectedCount:  report.Changes.Len() + len(report.Propagated),
		ErrorCount:     len(report.Failed),
	}, nil
}
