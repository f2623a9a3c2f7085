package metrics

import "time"

// TaskRun records one maintenance task run.
func TaskRun(task string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	TaskRunsTotal.WithLabelValues(task, result).Inc()
	TaskDuration.WithLabelValues(task).Observe(d.Seconds())
}

// Pruned records how many records a task removed.
func Pruned(task string, n int64) {
	if n > 0 {
		PrunedRowsTotal.WithLabelValues(task).Add(float64(n))
	}
}
