package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledger-importer/internal/classify"
)

const accountAliasesTable = "account_aliases"

// AliasRow is one row of the account_aliases table.
type AliasRow struct {
	Code     string `bigquery:"code"`      // REQUIRED
	Alias    string `bigquery:"alias"`     // REQUIRED
	Position int64  `bigquery:"position"`  // NULLABLE, registration order
	IsActive bool   `bigquery:"is_active"` // REQUIRED
}

// ListAccountAliases returns all active aliases in registration order.
func ListAccountAliases(ctx context.Context, projectID, datasetID string) ([]AliasRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListAccountAliases: bigquery client: %w", err)
	}
	defer client.Close()

	return ListAccountAliasesWithClient(ctx, client, datasetID)
}

// ListAccountAliasesWithClient returns all active aliases in registration
// order using the provided BigQuery client.
func ListAccountAliasesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) ([]AliasRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  code,
		  alias,
		  position,
		  is_active
		FROM %s.%s
		WHERE is_active = TRUE
		ORDER BY position, code, alias
	`, datasetID, accountAliasesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccountAliases: query read: %w", err)
	}

	var rows []AliasRow
	for {
		var r AliasRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccountAliases: iter next: %w", err)
		}
		rows = append(rows, r)
	}

	return rows, nil
}

// RulesFromAliases turns alias rows into dictionary rules. Consecutive rows
// with the same code share a rule, so registration order is preserved
// exactly. Blank codes or aliases are skipped.
func RulesFromAliases(rows []AliasRow) []classify.AliasRule {
	var rules []classify.AliasRule
	for _, r := range rows {
		code := strings.TrimSpace(r.Code)
		alias := strings.TrimSpace(r.Alias)
		if code == "" || alias == "" {
			continue
		}
		if n := len(rules); n > 0 && rules[n-1].Code == code {
			rules[n-1].Aliases = append(rules[n-1].Aliases, alias)
			continue
		}
		rules = append(rules, classify.AliasRule{Code: code, Aliases: []string{alias}})
	}
	return rules
}
