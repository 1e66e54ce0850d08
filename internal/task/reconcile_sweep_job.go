package task

import (
	"context"
	"time"

	"github.com/blues/donation/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// Sweeper 补记已确认未入账捐赠
type Sweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// ReconcileSweepJob 对账补偿任务
type ReconcileSweepJob struct {
	sweeper   Sweeper
	interval  time.Duration
	batchSize int
}

// NewReconcileSweepJob 创建对账补偿任务
func NewReconcileSweepJob(sweeper Sweeper, interval time.Duration, batchSize int) *ReconcileSweepJob {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconcileSweepJob{sweeper: sweeper, interval: interval, batchSize: batchSize}
}

// GetName 获取任务名称
func (j *ReconcileSweepJob) GetName() string {
	return "reconcile_sweep"
}

// GetSchedule 获取调度配置
func (j *ReconcileSweepJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *ReconcileSweepJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout())
	defer cancel()

	applied, err := j.sweeper.Sweep(ctx, j.batchSize)
	if err != nil {
		logger.Error("Reconcile sweep finished with errors (applied %d): %v", applied, err)
		return
	}
	if applied > 0 {
		logger.Info("Reconcile sweep applied %d donations", applied)
	}
}

func (j *ReconcileSweepJob) timeout() time.Duration {
	if j.interval < time.Minute {
		return time.Minute
	}
	return j.interval
}
