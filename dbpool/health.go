package dbpool

// Health 连接池的即时健康快照。
// 计数来自池的实时记账，不做缓存。
type Health struct {
	// Healthy 池存在且未关闭
	Healthy bool `json:"healthy"`
	// Min 配置的最小连接数
	Min int `json:"min"`
	// Max 配置的最大连接数
	Max int `json:"max"`
	// InUse 当前已检出的连接数
	InUse int `json:"in_use"`
	// Available 当前空闲的连接数
	Available int `json:"available"`
}

// Stats 暴露给存活探针和运维面板的池状态。
type Stats struct {
	// Status "ok" 或 "no_pool"
	Status string `json:"status"`
	// Backend 当前后端
	Backend Backend `json:"backend"`
	// Health 池健康快照，仅 Status 为 "ok" 时存在
	Health *Health `json:"health,omitempty"`
}

// Health 返回池的即时健康快照。
// 池不存在或已关闭时 Healthy 为 false。
func (m *Manager) Health() Health {
	h := Health{
		Min: m.cfg.MinConnections,
		Max: m.cfg.MaxConnections,
	}

	m.mu.Lock()
	p := m.pool
	m.mu.Unlock()

	if p == nil || p.isClosed() {
		return h
	}

	h.Healthy = true
	h.InUse, h.Available = p.counts()
	return h
}

// Stats 返回暴露给运维端点的池状态。
// 嵌入式后端或池尚不存在时返回 {status: "no_pool", backend}。
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	p := m.pool
	m.mu.Unlock()

	if m.cfg.Backend != BackendPostgres || p == nil {
		return Stats{Status: "no_pool", Backend: m.cfg.Backend}
	}

	h := m.Health()
	return Stats{Status: "ok", Backend: m.cfg.Backend, Health: &h}
}
