package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/scheduler"
)

const schedulerKey = "scheduler"

// SchedulerMiddleware 让运维接口读取调度器状态；nil 表示本进程不跑定时任务.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sched != nil {
			c.Set(schedulerKey, sched)
		}

		c.Next()
	}
}

// GetScheduler 当前进程的调度器，未注入时为 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if v, ok := c.Get(schedulerKey); ok {
		if sched, ok := v.(*scheduler.Scheduler); ok {
			return sched
		}
	}

	return nil
}
