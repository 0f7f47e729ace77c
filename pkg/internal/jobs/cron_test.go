package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/jobs"
	"github.com/yeisme/vistoria/pkg/scheduler"
)

type countingGC struct{ runs atomic.Int32 }

func (c *countingGC) GC(context.Context) (int, error) {
	c.runs.Add(1)

	return 2, nil
}

func TestRegisterTempGC(t *testing.T) {
	s, err := scheduler.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	defer func() { _ = s.Stop() }()

	gc := &countingGC{}
	cfg := configs.Defaults().Uploads

	if err := jobs.RegisterCronJobs(s, cfg, gc); err != nil {
		t.Fatal(err)
	}

	infos := s.GetJobInfos()
	if len(infos) != 1 || infos[0].Name != jobs.JobTempUploadsGC || infos[0].CronExpr != configs.DefaultTempGCCron {
		t.Fatalf("unexpected jobs %+v", infos)
	}

	s.Start()

	if err := s.RunNow(jobs.JobTempUploadsGC); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for gc.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if gc.runs.Load() != 1 {
		t.Fatalf("gc ran %d times", gc.runs.Load())
	}
}

func TestRegisterDisabled(t *testing.T) {
	s, err := scheduler.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	defer func() { _ = s.Stop() }()

	cfg := configs.Defaults().Uploads
	cfg.GCEnabled = false

	if err := jobs.RegisterCronJobs(s, cfg, &countingGC{}); err != nil {
		t.Fatal(err)
	}

	if len(s.GetJobInfos()) != 0 {
		t.Fatal("disabled gc still registered")
	}
}
