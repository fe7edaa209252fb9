package diva

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SchemaField describes one column of a view at a given aggregation.
type SchemaField struct {
	Field       string `json:"field"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

const (
	suggestionCount  = 3
	suggestionCutoff = 0.6
)

// GetViewSchema fetches the field list for a (view, aggregation) pair.
// Results are cached in memory for the process lifetime.
func (c *Client) GetViewSchema(ctx context.Context, viewName, aggregation string) ([]SchemaField, error) {
	cacheKey := viewName + ":" + aggregation

	c.schemaMu.Lock()
	cached, ok := c.schemaCache[cacheKey]
	c.schemaMu.Unlock()
	if ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("/views/%s/%s/schema", viewName, aggregation)
	body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	schema, err := decodeSchema(body)
	if err != nil {
		return nil, err
	}

	c.schemaMu.Lock()
	c.schemaCache[cacheKey] = schema
	c.schemaMu.Unlock()

	return schema, nil
}

// decodeSchema accepts both a bare field array and a records envelope.
func decodeSchema(body []byte) ([]SchemaField, error) {
	var fields []SchemaField
	if err := json.Unmarshal(body, &fields); err == nil {
		return fields, nil
	}

	var envelope struct {
		Records []SchemaField `json:"records"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode schema response: %w", err)
	}
	return envelope.Records, nil
}

// ValidateFilters checks filter keys against the view schema and returns
// a validation error with fuzzy suggestions for unknown fields. A failed
// schema fetch skips validation entirely: availability over strictness,
// the API reports invalid fields on its own.
func (c *Client) ValidateFilters(ctx context.Context, viewName, aggregation string, filters map[string]any) error {
	if len(filters) == 0 {
		return nil
	}

	schema, err := c.GetViewSchema(ctx, viewName, aggregation)
	if err != nil {
		c.logger.WarnContext(ctx, "schema fetch failed, skipping filter validation",
			"view", viewName, "aggregation", aggregation, "error", err)
		return nil
	}

	validFields := make([]string, len(schema))
	for i, field := range schema {
		validFields[i] = field.Field
	}
	validSet := make(map[string]bool, len(validFields))
	for _, f := range validFields {
		validSet[f] = true
	}

	var invalid []string
	for key := range filters {
		if !validSet[key] {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)

	var msg strings.Builder
	fmt.Fprintf(&msg, "/%s/%s does not have the following column(s): %s",
		viewName, aggregation, strings.Join(quoteAll(invalid), ", "))

	var suggestions []string
	for _, field := range invalid {
		if similar := closeMatches(field, validFields, suggestionCount, suggestionCutoff); len(similar) > 0 {
			suggestions = append(suggestions, fmt.Sprintf("%q -> did you mean %s?",
				field, strings.Join(quoteAll(similar), " or ")))
		}
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(&msg, "; suggestions: %s", strings.Join(suggestions, "; "))
	}

	return &APIError{
		Kind:       KindValidation,
		StatusCode: 400,
		Message:    "invalid filter fields",
		Response:   map[string]any{"message": msg.String()},
	}
}

func quoteAll(fields []string) []string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = fmt.Sprintf("%q", f)
	}
	return quoted
}
