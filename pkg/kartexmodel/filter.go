package kartexmodel

import "time"

// LogQueryFilter narrows a log search. A zero value matches everything.
type LogQueryFilter struct {
	Level        *Level     `json:"level,omitempty"`
	Service      string     `json:"service,omitempty"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	Search       string     `json:"search,omitempty"`
	SearchField  string     `json:"search_field,omitempty"` // "" = full text, else one of message/service/exception
	SearchRegex  bool       `json:"search_regex,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Skip         int        `json:"skip,omitempty"`
}

// ClampLimit applies spec's [1, 1000] clamp, defaulting to 100 when unset.
func (f *LogQueryFilter) ClampLimit() {
	switch {
	case f.Limit <= 0:
		f.Limit = 100
	case f.Limit > 1000:
		f.Limit = 1000
	}
}

// TraceSummaryFilter narrows a trace summary query to root spans only.
type TraceSummaryFilter struct {
	Service    string     `json:"service,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	MinDurMs   *float64   `json:"min_duration_ms,omitempty"`
	MaxDurMs   *float64   `json:"max_duration_ms,omitempty"`
	Status     *StatusCode `json:"status,omitempty"`
	Search     string     `json:"search,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Skip       int        `json:"skip,omitempty"`
}

// Stats summarizes a log collection.
type Stats struct {
	TotalCount      int64            `json:"total_count"`
	CountsByLevel   map[string]int64 `json:"counts_by_level"`
	CountsByService map[string]int64 `json:"counts_by_service"`
}
