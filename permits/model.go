package permits

import "time"

// Permit 建筑许可记录
type Permit struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	IssuedAt    time.Time `json:"issued_at"`

	// Inspections 可选的验收记录富化数据。
	// 对应熔断类别打开时为空，不视为错误
	Inspections []Inspection `json:"inspections,omitempty"`
}

// Inspection 许可对应的验收记录
type Inspection struct {
	ID          int64     `json:"id"`
	PermitID    int64     `json:"permit_id"`
	Result      string    `json:"result"`
	InspectedAt time.Time `json:"inspected_at"`
}
