package domain

// ReadStats describes how a workbook read went, beyond the rows themselves.
type ReadStats struct {
	TotalRows      int  `json:"total_rows"`
	Chunked        bool `json:"chunked"`
	Chunks         int  `json:"chunks"`
	MemoryDegraded bool `json:"memory_degraded"`
	HeaderRow      int  `json:"header_row"`
}
