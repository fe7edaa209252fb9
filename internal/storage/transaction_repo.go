package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_transaction_store.go -package=mocks github.com/zvika-finally/marqeta-diva-mcp/internal/storage TransactionStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// TransactionStore is the exact-match persistence interface for
// synchronized transactions.
type TransactionStore interface {
	// Upsert writes or replaces transactions keyed by transaction_token.
	// Records missing a token are skipped with a warning. Returns the
	// number of rows written.
	Upsert(ctx context.Context, txns []map[string]any, viewName, aggregation string) (int, error)
	// GetByTokens returns the full payloads for the given tokens. Result
	// order is unspecified; missing tokens are simply absent.
	GetByTokens(ctx context.Context, tokens []string) ([]map[string]any, error)
	// Query runs a filtered, paged query over the projected columns.
	Query(ctx context.Context, filters map[string]any, limit, offset int, orderBy string) (*QueryResult, error)
	// Stats summarizes the store contents.
	Stats(ctx context.Context) (*Stats, error)
	// Clear deletes all rows, or only one view's rows when viewName is
	// non-empty. Returns the number of rows deleted.
	Clear(ctx context.Context, viewName string) (int, error)
}

// TransactionRepo implements TransactionStore over SQLite.
type TransactionRepo struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// NewTransactionRepo creates a TransactionRepo. dbPath is retained for
// the file-size stat.
func NewTransactionRepo(db *sql.DB, dbPath string) *TransactionRepo {
	return &TransactionRepo{db: db, dbPath: dbPath, logger: slog.Default()}
}

// projectedColumns lists the denormalized columns written on upsert, in
// insert order. Fallback keys mirror the schema drift between views.
var projectedColumns = []struct {
	column string
	keys   []string
}{
	{"merchant_name", []string{"merchant_name", "acquirer_merchant_name"}},
	{"transaction_amount", []string{"transaction_amount"}},
	{"transaction_type", []string{"transaction_type"}},
	{"state", []string{"state", "transaction_status"}},
	{"user_token", []string{"user_token", "acting_user_token"}},
	{"card_token", []string{"card_token"}},
	{"business_user_token", []string{"business_user_token"}},
	{"created_time", []string{"created_time", "transaction_timestamp"}},
	{"transaction_timestamp", []string{"transaction_timestamp"}},
	{"network", []string{"network"}},
	{"merchant_category_code", []string{"merchant_category_code"}},
	{"currency_code", []string{"currency_code"}},
}

const upsertSQL = `INSERT OR REPLACE INTO transactions (
	transaction_token, view_name, aggregation,
	merchant_name, transaction_amount, transaction_type,
	state, user_token, card_token, business_user_token,
	created_time, transaction_timestamp, network,
	merchant_category_code, currency_code, full_data
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Upsert writes or replaces each transaction row. The full payload is
// serialized verbatim so reads round-trip losslessly.
func (r *TransactionRepo) Upsert(ctx context.Context, txns []map[string]any, viewName, aggregation string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	count := 0
	for _, txn := range txns {
		token := tokenOf(txn)
		if token == "" {
			r.logger.WarnContext(ctx, "transaction missing token, skipping")
			continue
		}

		fullData, err := json.Marshal(txn)
		if err != nil {
			return count, fmt.Errorf("failed to serialize transaction %s: %w", token, err)
		}

		args := make([]any, 0, 16)
		args = append(args, token, viewName, aggregation)
		for _, col := range projectedColumns {
			args = append(args, firstPresent(txn, col.keys))
		}
		args = append(args, string(fullData))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return count, fmt.Errorf("failed to upsert transaction %s: %w", token, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	r.logger.InfoContext(ctx, "upserted transactions", "count", count, "view", viewName, "aggregation", aggregation)
	return count, nil
}

// GetByTokens returns decoded payloads for the tokens that exist.
func (r *TransactionRepo) GetByTokens(ctx context.Context, tokens []string) ([]map[string]any, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(tokens))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(tokens))
	for i, token := range tokens {
		args[i] = token
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT full_data FROM transactions WHERE transaction_token IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []map[string]any
	for rows.Next() {
		var fullData string
		if err := rows.Scan(&fullData); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		var txn map[string]any
		if err := json.Unmarshal([]byte(fullData), &txn); err != nil {
			return nil, fmt.Errorf("failed to decode stored transaction: %w", err)
		}
		results = append(results, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// Query runs a filtered query and reports the total match count
// alongside the returned page.
func (r *TransactionRepo) Query(ctx context.Context, filters map[string]any, limit, offset int, orderBy string) (*QueryResult, error) {
	preds, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}
	where, args := whereClause(preds)

	ordering, err := parseOrderBy(orderBy)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT full_data FROM transactions WHERE "+where+" ORDER BY "+ordering+" LIMIT ? OFFSET ?",
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	data := make([]map[string]any, 0, limit)
	for rows.Next() {
		var fullData string
		if err := rows.Scan(&fullData); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		var txn map[string]any
		if err := json.Unmarshal([]byte(fullData), &txn); err != nil {
			return nil, fmt.Errorf("failed to decode stored transaction: %w", err)
		}
		data = append(data, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &QueryResult{
		Total:  total,
		Count:  len(data),
		Offset: offset,
		Limit:  limit,
		IsMore: offset+len(data) < total,
		Data:   data,
	}, nil
}

// Stats summarizes the store: totals, per-view counts, the created_time
// range, and the database file size.
func (r *TransactionRepo) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{DatabasePath: r.dbPath}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&stats.TotalTransactions); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT view_name, aggregation, COUNT(*) FROM transactions GROUP BY view_name, aggregation",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query view counts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var vc ViewCount
		if err := rows.Scan(&vc.ViewName, &vc.Aggregation, &vc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan view count: %w", err)
		}
		stats.ByView = append(stats.ByView, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var earliest, latest sql.NullString
	if err := r.db.QueryRowContext(ctx,
		"SELECT MIN(created_time), MAX(created_time) FROM transactions",
	).Scan(&earliest, &latest); err != nil {
		return nil, fmt.Errorf("failed to query date range: %w", err)
	}
	stats.EarliestCreated = earliest.String
	stats.LatestCreated = latest.String

	if info, err := os.Stat(r.dbPath); err == nil {
		stats.DatabaseSizeBytes = info.Size()
	}

	return stats, nil
}

// Clear deletes rows, optionally scoped to one view.
func (r *TransactionRepo) Clear(ctx context.Context, viewName string) (int, error) {
	var result sql.Result
	var err error
	if viewName != "" {
		result, err = r.db.ExecContext(ctx, "DELETE FROM transactions WHERE view_name = ?", viewName)
	} else {
		result, err = r.db.ExecContext(ctx, "DELETE FROM transactions")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear transactions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}

	r.logger.InfoContext(ctx, "cleared transactions", "count", count, "view", viewName)
	return int(count), nil
}

// tokenOf extracts the transaction token, coercing non-string scalars.
func tokenOf(txn map[string]any) string {
	v, ok := txn["transaction_token"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// firstPresent returns the first non-nil, non-empty value among keys.
func firstPresent(txn map[string]any, keys []string) any {
	for _, key := range keys {
		v, ok := txn[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return v
	}
	return nil
}
