package status

type HealthResponse struct {
	Status     string                  `json:"status"`
	Components map[string]HealthResult `json:"components"`
}

type HealthResult struct {
	Status string  `json:"status"`
	Error  *string `json:"error,omitempty"`
}

type StatusResponse struct {
	UpTime  string                 `json:"uptime"`
	Runtime RuntimeStats           `json:"runtime"`
	Memory  MemoryStats            `json:"memory"`
	Stats   map[string]interface{} `json:"stats"`
	Queue   QueueStats             `json:"queue"`
}

type MemoryStats struct {
	Alloc       string `json:"alloc"`
	Sys         string `json:"sys"`
	HeapAlloc   string `json:"heap_alloc"`
	HeapObjects int64  `json:"heap_objects"`
	GC          int64  `json:"gc"`
}

type RuntimeStats struct {
	Go         string `json:"go"`
	Goroutines int    `json:"goroutines"`
}

type QueueStats struct {
	Durable bool   `json:"durable"`
	Size    int64  `json:"size"`
	Error   string `json:"error,omitempty"`
}

func BytesToMiB(bytes uint64) float64 {
	return float64(bytes) / 1024 / 1024
}
