package dbpool

// 指标名称
const (
	// MetricPoolInUse 当前已检出的连接数
	MetricPoolInUse = "dbpool_in_use"

	// MetricPoolIdle 当前空闲的连接数
	MetricPoolIdle = "dbpool_idle"

	// MetricExhaustedTotal 因池耗尽而失败的检出次数
	MetricExhaustedTotal = "dbpool_exhausted_total"
)
