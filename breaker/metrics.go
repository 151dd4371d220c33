package breaker

// 指标名称
const (
	// MetricFailuresTotal 上报的失败总数
	MetricFailuresTotal = "breaker_failures_total"

	// MetricTripsTotal 触发熔断的次数
	MetricTripsTotal = "breaker_trips_total"
)

// 指标标签
const (
	// LabelCategory 查询类别
	LabelCategory = "category"
)
