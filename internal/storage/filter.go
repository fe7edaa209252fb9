package storage

import (
	"fmt"
	"strings"
)

// Op is a comparison operator in a filter predicate.
type Op string

const (
	OpEq   Op = "="
	OpNeq  Op = "!="
	OpGt   Op = ">"
	OpLt   Op = "<"
	OpGte  Op = ">="
	OpLte  Op = "<="
	OpLike Op = "like"
)

// Predicate is one compiled filter condition: Field Op Value, with Value
// always passed as a bound parameter.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// queryColumns is the set of filterable/sortable columns. Field names
// from callers are interpolated into SQL, so anything outside this set
// is rejected rather than quoted.
var queryColumns = map[string]bool{
	"transaction_token":      true,
	"view_name":              true,
	"aggregation":            true,
	"merchant_name":          true,
	"transaction_amount":     true,
	"transaction_type":       true,
	"state":                  true,
	"user_token":             true,
	"card_token":             true,
	"business_user_token":    true,
	"created_time":           true,
	"transaction_timestamp":  true,
	"network":                true,
	"merchant_category_code": true,
	"currency_code":          true,
	"indexed_at":             true,
}

var operators = map[string]Op{
	">":    OpGt,
	"<":    OpLt,
	">=":   OpGte,
	"<=":   OpLte,
	"=":    OpEq,
	"!=":   OpNeq,
	"like": OpLike,
}

// CompileFilters turns the loose filter form into predicates. A scalar
// value means equality; a sub-map holds operator keys. Unrecognized
// operator keys are skipped, not rejected, so callers mixing in other
// stores' operator spellings lose that condition instead of the query.
func CompileFilters(filters map[string]any) ([]Predicate, error) {
	var preds []Predicate

	for field, value := range filters {
		if !queryColumns[field] {
			return nil, fmt.Errorf("unknown filter field %q", field)
		}

		subMap, ok := value.(map[string]any)
		if !ok {
			preds = append(preds, Predicate{Field: field, Op: OpEq, Value: value})
			continue
		}

		for opKey, opValue := range subMap {
			op, known := operators[opKey]
			if !known {
				continue
			}
			preds = append(preds, Predicate{Field: field, Op: op, Value: opValue})
		}
	}

	return preds, nil
}

// whereClause renders predicates as a conjunctive WHERE body plus its
// bound arguments. An empty predicate list matches everything.
func whereClause(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "1=1", nil
	}

	clauses := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		if p.Op == OpLike {
			clauses = append(clauses, p.Field+" LIKE ?")
			args = append(args, fmt.Sprintf("%%%v%%", p.Value))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", p.Field, p.Op))
		args = append(args, p.Value)
	}

	return strings.Join(clauses, " AND "), args
}

// parseOrderBy validates an "column [ASC|DESC]" ordering input against
// the column whitelist. Empty input orders by created_time descending.
func parseOrderBy(orderBy string) (string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return "created_time DESC", nil
	}

	parts := strings.Fields(orderBy)
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid order_by %q", orderBy)
	}

	column := strings.ToLower(parts[0])
	if !queryColumns[column] {
		return "", fmt.Errorf("unknown order_by column %q", parts[0])
	}

	direction := "ASC"
	if len(parts) == 2 {
		switch strings.ToUpper(parts[1]) {
		case "ASC":
		case "DESC":
			direction = "DESC"
		default:
			return "", fmt.Errorf("invalid order_by direction %q", parts[1])
		}
	}

	return column + " " + direction, nil
}
