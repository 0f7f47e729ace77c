package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/types"
	"github.com/yeisme/vistoria/pkg/middleware"
	"github.com/yeisme/vistoria/pkg/scheduler"
)

// SchedulerJobs 定时任务列表.
//
//	@Summary	定时任务
//	@Tags		scheduler
//	@Produce	json
//	@Success	200	{object}	types.JobsResponse
//	@Failure	403	{object}	types.ErrorResponse
//	@Router		/api/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		fail(c, errs.New(errs.KindNotFound, "scheduler desativado"))

		return
	}

	jobs := sched.GetJobInfos()
	if jobs == nil {
		jobs = []scheduler.JobInfo{}
	}

	c.JSON(http.StatusOK, types.JobsResponse{Success: true, Jobs: jobs})
}
