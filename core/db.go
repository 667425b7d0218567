package core

import "time"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Row is a single record read from the remote store, keyed by column name.
type Row map[string]interface{}

// String returns the column value as a string ("" when missing or NULL).
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Filter is an equality match on one column.
type Filter struct {
	Field string
	Value interface{}
}

// Query narrows a remote read. The zero value reads every row of a table.
type Query struct {
	Filters  []Filter
	Ordering []DBOrdering
	Limit    int
	CacheTTL time.Duration // > 0 serves repeated identical reads from the gateway cache
}

type ConnectOptions struct {
	Timeout         time.Duration // per call
	ConnectAttempts int
	MaxOpenConns    int
	HealthTTL       time.Duration
}

type Health struct {
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}
