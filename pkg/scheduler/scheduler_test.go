package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/vistoria/pkg/scheduler"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("condition not met in time")
}

func info(s *scheduler.Scheduler, name string) scheduler.JobInfo {
	for _, j := range s.GetJobInfos() {
		if j.Name == name {
			return j
		}
	}

	return scheduler.JobInfo{}
}

func TestRunNowRecordsStatus(t *testing.T) {
	s, err := scheduler.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	defer func() { _ = s.Stop() }()

	var calls atomic.Int32

	if err := s.AddCron("ok", "0 3 * * *", func(context.Context) error {
		calls.Add(1)

		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.AddCron("boom", "0 3 * * *", func(context.Context) error {
		return errors.New("disk full")
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.AddCron("ok", "0 4 * * *", func(context.Context) error { return nil }); err == nil {
		t.Fatal("duplicate job name accepted")
	}

	s.Start()

	if err := s.RunNow("ok"); err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow("boom"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return info(s, "ok").Runs == 1 && info(s, "boom").Runs == 1 })

	if ok := info(s, "ok"); ok.Status != scheduler.StatusScheduled || ok.LastSuccess.IsZero() || calls.Load() != 1 {
		t.Fatalf("unexpected info %+v", ok)
	}

	if bad := info(s, "boom"); bad.Status != scheduler.StatusError || bad.Error != "disk full" {
		t.Fatalf("unexpected info %+v", bad)
	}

	if infos := s.GetJobInfos(); len(infos) != 2 || infos[0].Name != "boom" {
		t.Fatalf("infos not sorted by name: %+v", infos)
	}

	if err := s.RunNow("missing"); err == nil {
		t.Fatal("unknown job should fail")
	}
}

func TestRejectsBadCron(t *testing.T) {
	s, err := scheduler.New(time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	defer func() { _ = s.Stop() }()

	if err := s.AddCron("bad", "not a cron", func(context.Context) error { return nil }); err == nil {
		t.Fatal("invalid cron expression accepted")
	}

	if len(s.GetJobInfos()) != 0 {
		t.Fatal("failed job must not be listed")
	}
}
