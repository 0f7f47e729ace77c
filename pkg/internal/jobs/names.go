package jobs

// 任务名称.
const (
	JobTempUploadsGC = "uploads.temp_gc"
)
