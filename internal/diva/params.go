package diva

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// maxRecordCount is the DiVA API hard limit for JSON responses. Requests
// above it are clamped; unset counts default to it. The API has no
// offset parameter, so one bounded page is all a call can ever fetch.
const maxRecordCount = 10000

// QueryOptions holds the structural query request translated into
// transport parameters by BuildQueryParams.
type QueryOptions struct {
	// Program overrides the client's default program when set.
	Program string
	// Fields limits the returned projection; serialized comma-joined.
	Fields []string
	// Filters maps data field names to values. For date filtering use the
	// actual date field with an operator prefix, e.g.
	// {"transaction_timestamp": ">=2023-10-20"}.
	Filters map[string]any
	// SortBy names the sort field; prefix with "-" for descending.
	SortBy string
	// Count caps the number of records; 0 means the API default.
	Count int
	// GroupBy and Expand are passed through verbatim when set.
	GroupBy string
	Expand  string
}

// BuildQueryParams translates opts into outgoing query parameters.
// Each filter entry becomes its own top-level parameter; filters are not
// nested under a "filters" key. List values serialize comma-joined.
func (c *Client) BuildQueryParams(opts QueryOptions) url.Values {
	params := url.Values{}

	program := opts.Program
	if program == "" {
		program = c.program
	}
	params.Set("program", program)

	if len(opts.Fields) > 0 {
		params.Set("fields", strings.Join(opts.Fields, ","))
	}

	if opts.SortBy != "" {
		params.Set("sort_by", opts.SortBy)
	}

	if opts.Count > 0 {
		params.Set("count", strconv.Itoa(min(opts.Count, maxRecordCount)))
	} else {
		params.Set("count", strconv.Itoa(maxRecordCount))
	}

	if opts.GroupBy != "" {
		params.Set("group_by", opts.GroupBy)
	}
	if opts.Expand != "" {
		params.Set("expand", opts.Expand)
	}

	for key, value := range opts.Filters {
		params.Set(key, filterValue(value))
	}

	return params
}

func filterValue(value any) string {
	switch v := value.(type) {
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}
