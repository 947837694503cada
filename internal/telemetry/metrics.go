package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScheduleExecutions — исходы попыток выполнения по типу контента.
	// outcome: executed, failed, retry, skipped, not_due.
	ScheduleExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_schedule_executions_total",
		Help: "Schedule record execution attempts by content type and outcome",
	}, []string{"content_type", "outcome"})

	// ExecutionDuration — длительность вызова исполнителя.
	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_schedule_execution_duration_seconds",
		Help:    "Executor invocation duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"content_type"})

	// SweepDuration — длительность одного прохода polling-движка.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_sweep_duration_seconds",
		Help:    "Duration of a polling sweep",
		Buckets: prometheus.DefBuckets,
	})

	// SweepDueRecords — сколько due-записей нашёл последний проход.
	SweepDueRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_sweep_due_records",
		Help: "Due records returned by the last sweep",
	})

	// CouponGrants — результаты раздачи купонов по участникам.
	CouponGrants = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_coupon_grants_total",
		Help: "Coupon fan-out results per member",
	}, []string{"result"})

	// NotificationDeliveries — результаты отправки email.
	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_notification_deliveries_total",
		Help: "Email transport results",
	}, []string{"result"})

	// SchedulesCreated — созданные записи по типу контента.
	SchedulesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_schedules_created_total",
		Help: "Schedule records created",
	}, []string{"content_type"})

	// SchedulesCancelled — успешные отмены.
	SchedulesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_schedules_cancelled_total",
		Help: "Schedule records cancelled while pending",
	})

	// JobsPublished — сообщения triggered-движка.
	// kind: due, delay, retry.
	JobsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_jobs_published_total",
		Help: "Delayed jobs published to RabbitMQ",
	}, []string{"kind"})

	// HTTPRequests — HTTP-запросы к API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_http_requests_total",
		Help: "HTTP requests handled by the API",
	}, []string{"method", "status"})
)
