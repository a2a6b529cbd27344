// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 技能调用指标
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec

	// 流式输出指标
	streamEventsTotal *prometheus.CounterVec

	// 令牌用量指标
	tokensUsed *prometheus.CounterVec

	// 队列指标
	queueDepth *prometheus.GaugeVec

	// 触发器指标
	triggersScheduled prometheus.Gauge

	// HTTP 请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 技能调用指标
	c.invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_invocations_total",
			Help:      "Total number of completed skill invocations",
		},
		[]string{"skill", "status"},
	)
	c.invocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "skill_invocation_duration_seconds",
			Help:      "Skill invocation duration from start to terminal commit",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"skill"},
	)

	// 流式输出指标
	c.streamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Total number of frames forwarded to live connections",
		},
		[]string{"event"},
	)

	// 令牌用量指标
	c.tokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total number of tokens accounted by tier and direction",
		},
		[]string{"tier", "direction"},
	)

	// 队列指标
	c.queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of pending jobs per queue channel",
		},
		[]string{"channel"},
	)

	// 触发器指标
	c.triggersScheduled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "triggers_scheduled",
			Help:      "Number of timer triggers currently bound to a queue job",
		},
	)

	// HTTP 请求指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "path"},
	)

	return c
}

// =============================================================================
// 📈 记录方法
// =============================================================================

// RecordInvocation 记录一次技能调用
func (c *Collector) RecordInvocation(skill, status string, duration time.Duration) {
	c.invocationsTotal.WithLabelValues(skill, status).Inc()
	c.invocationDuration.WithLabelValues(skill).Observe(duration.Seconds())
}

// RecordStreamEvent 记录一个转发帧
func (c *Collector) RecordStreamEvent(event string) {
	c.streamEventsTotal.WithLabelValues(event).Inc()
}

// RecordTokens 记录令牌用量
func (c *Collector) RecordTokens(tier string, inputTokens, outputTokens int) {
	c.tokensUsed.WithLabelValues(tier, "input").Add(float64(inputTokens))
	c.tokensUsed.WithLabelValues(tier, "output").Add(float64(outputTokens))
}

// RecordQueueDepth 记录队列深度
func (c *Collector) RecordQueueDepth(channel string, depth int64) {
	c.queueDepth.WithLabelValues(channel).Set(float64(depth))
}

// AddScheduledTriggers 调整已调度触发器数量
func (c *Collector) AddScheduledTriggers(delta int) {
	c.triggersScheduled.Add(float64(delta))
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
