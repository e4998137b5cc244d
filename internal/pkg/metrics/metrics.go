package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 任务与限流相关的 Prometheus 指标。
//
// 指标对象在包加载时创建，未注册时 Inc/Observe 也是安全的；
// InitMetrics 负责把它们注册到默认 Registry（幂等）。
var (
	TaskCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskr_task_created_total",
		Help: "Total number of tasks created.",
	})

	TaskCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskr_task_completed_total",
		Help: "Total number of tasks marked complete.",
	})

	TaskDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskr_task_deleted_total",
		Help: "Total number of tasks deleted.",
	})

	PermissionDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskr_permission_denied_total",
		Help: "Total number of mutations rejected by the ownership guard.",
	})

	RateLimitWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskr_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token.",
		Buckets: prometheus.DefBuckets,
	})

	RateLimitTimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskr_ratelimit_timeout_total",
		Help: "Total number of rate limit waits aborted by context.",
	})

	RateLimitRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskr_ratelimit_rejected_total",
		Help: "Total number of requests rejected with 429 by the rate limiter.",
	})
)

var registerOnce sync.Once

// InitMetrics 注册所有指标，重复调用无副作用。
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TaskCreatedTotal,
			TaskCompletedTotal,
			TaskDeletedTotal,
			PermissionDeniedTotal,
			RateLimitWaitDuration,
			RateLimitTimeoutTotal,
			RateLimitRejectedTotal,
		)
	})
}
