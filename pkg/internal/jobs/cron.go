// Package jobs 注册业务定时任务.
package jobs

import (
	"context"
	"errors"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/log"
	"github.com/yeisme/vistoria/pkg/scheduler"
)

// TempCollector 清理过期暂存照片.
type TempCollector interface {
	GC(ctx context.Context) (int, error)
}

// RegisterCronJobs 注册定时任务：按 uploads.gc_cron 清理过期暂存照片.
func RegisterCronJobs(sched *scheduler.Scheduler, cfg configs.UploadsConfig, gc TempCollector) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if gc == nil {
		return errors.New("temp collector is nil")
	}

	if !cfg.GCEnabled || cfg.GCCron == "" {
		log.Component("jobs").Info().Msg("temp upload gc disabled")

		return nil
	}

	return sched.AddCron(JobTempUploadsGC, cfg.GCCron, func(ctx context.Context) error {
		return runTempGC(ctx, gc)
	})
}

func runTempGC(ctx context.Context, gc TempCollector) error {
	l := log.Component("jobs").With().Str("job", JobTempUploadsGC).Logger()

	n, err := gc.GC(ctx)
	if err != nil {
		return err
	}

	if n > 0 {
		l.Info().Int("removed", n).Msg("expired temp uploads removed")
	}

	return nil
}
