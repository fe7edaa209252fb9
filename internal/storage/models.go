package storage

// QueryResult is one page of a filtered query plus the totals needed for
// honest pagination: IsMore is true iff offset + len(Data) < Total.
type QueryResult struct {
	Total  int              `json:"total"`
	Count  int              `json:"count"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
	IsMore bool             `json:"is_more"`
	Data   []map[string]any `json:"data"`
}

// ViewCount is the number of stored transactions for one provenance
// scope, a (view, aggregation) pair.
type ViewCount struct {
	ViewName    string `json:"view_name"`
	Aggregation string `json:"aggregation"`
	Count       int    `json:"count"`
}

// Stats summarizes the relational store.
type Stats struct {
	DatabasePath      string      `json:"database_path"`
	TotalTransactions int         `json:"total_transactions"`
	ByView            []ViewCount `json:"by_view"`
	EarliestCreated   string      `json:"earliest_created"`
	LatestCreated     string      `json:"latest_created"`
	DatabaseSizeBytes int64       `json:"database_size_bytes"`
}
