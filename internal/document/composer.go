// Package document turns semi-structured transaction records into a
// stable text projection used as the embedding input. Retrieval quality
// depends on this projection staying deterministic, so the field order
// and separator are fixed.
package document

import (
	"fmt"
	"strings"
)

const separator = " | "

// Compose formats a transaction into embedding text. Parts appear in
// fixed priority order and absent fields are omitted. Degenerate records
// (fewer than two parts) fall back to the transaction token so every
// record still yields distinguishing text.
func Compose(txn map[string]any) string {
	var parts []string

	if merchant := stringField(txn, "merchant_name", "acquirer_merchant_name"); merchant != "" {
		parts = append(parts, "Merchant: "+merchant)
	}

	if amount, ok := txn["transaction_amount"]; ok && amount != nil {
		currency := stringField(txn, "currency_code")
		if currency == "" {
			currency = "USD"
		}
		parts = append(parts, fmt.Sprintf("Amount: %v %s", amount, currency))
	}

	if txnType := stringField(txn, "transaction_type"); txnType != "" {
		parts = append(parts, "Type: "+txnType)
	}

	if state := stringField(txn, "state", "transaction_status"); state != "" {
		parts = append(parts, "Status: "+state)
	}

	if mcc := stringField(txn, "merchant_category_code"); mcc != "" {
		parts = append(parts, "MCC: "+mcc)
	}

	if presence := stringField(txn, "card_presence_indicator"); presence != "" {
		parts = append(parts, "Card Presence: "+presence)
	}

	if network := stringField(txn, "network"); network != "" {
		parts = append(parts, "Network: "+network)
	}

	if len(parts) < 2 {
		if token := stringField(txn, "transaction_token"); token != "" {
			parts = append(parts, "Transaction: "+token)
		}
	}

	return strings.Join(parts, separator)
}

// stringField returns the first non-empty key as a string, trying each
// fallback key in order. Non-string scalars are rendered with %v so
// numeric codes survive the projection.
func stringField(txn map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := txn[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if s != "" {
				return s
			}
			continue
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}
