// Package scheduler 定时任务调度
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/metrics"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/logger"
)

// Scheduler 任务调度器
type Scheduler struct {
	cron   *cron.Cron
	redis  redis.UniversalClient
	jobs   map[string]Job
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 创建调度器, redis 为 nil 时任务不加锁
func NewScheduler(client redis.UniversalClient) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()), // 支持秒级调度
		redis:  client,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob 注册任务, cronSpec 为空表示只能手动触发
func (s *Scheduler) RegisterJob(job Job, cronSpec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	if cronSpec != "" {
		if _, err := s.cron.AddFunc(cronSpec, func() { s.RunJob(job) }); err != nil {
			return fmt.Errorf("failed to add cron job: %w", err)
		}
	}
	s.jobs[job.Name()] = job

	logger.Info("job registered", zap.String("job", job.Name()), zap.String("cron", cronSpec))
	return nil
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("scheduler started")
}

// Stop 停止调度器, 等待运行中的任务结束
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("scheduler stopped")
}

// TriggerJob 手动触发任务
func (s *Scheduler) TriggerJob(jobName string) error {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	go s.RunJob(job)
	return nil
}

// RunJob 同步执行任务, 返回执行结果: success/failed/skipped
func (s *Scheduler) RunJob(job Job) string {
	select {
	case <-s.ctx.Done():
		return "skipped"
	default:
	}

	ctx, cancel := context.WithTimeout(s.ctx, job.Timeout())
	defer cancel()

	if s.redis != nil && job.LockTTL() > 0 {
		lock := NewDistributedLock(s.redis, job.Name(), job.LockTTL())
		acquired, err := lock.TryLock(ctx)
		if err != nil {
			logger.Error("failed to acquire lock", zap.String("job", job.Name()), zap.Error(err))
			metrics.RecordJobRun(job.Name(), "failed")
			return "failed"
		}
		if !acquired {
			logger.Debug("job is already running on another instance", zap.String("job", job.Name()))
			metrics.RecordJobRun(job.Name(), "skipped")
			return "skipped"
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				logger.Error("failed to release lock", zap.String("job", job.Name()), zap.Error(err))
			}
		}()
	}

	startTime := time.Now()
	logger.Info("starting job", zap.String("job", job.Name()))

	result, err := job.Execute(ctx)
	if err != nil {
		logger.Error("job failed",
			zap.String("job", job.Name()),
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err))
		metrics.RecordJobRun(job.Name(), "failed")
		return "failed"
	}

	fields := []zap.Field{zap.String("job", job.Name()), zap.Duration("duration", time.Since(startTime))}
	if result != nil {
		fields = append(fields,
			zap.Int("processed", result.ProcessedCount),
			zap.Int("affected", result.AffectedCount),
			zap.Int("errors", result.ErrorCount))
	}
	logger.Info("job completed", fields...)
	metrics.RecordJobRun(job.Name(), "success")
	return "success"
}
