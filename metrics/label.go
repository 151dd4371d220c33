package metrics

import "go.opentelemetry.io/otel/attribute"

// Label 指标标签，用于分组和筛选。
type Label = attribute.KeyValue

// L 创建一个字符串标签。
//
//	counter.Inc(ctx, metrics.L("backend", "postgres"))
func L(key, value string) Label {
	return attribute.String(key, value)
}
