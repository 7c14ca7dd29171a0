package database

import (
	"fmt"
	"sort"
	"strings"
)

// ToWhereClause builds a WHERE clause from a column → value map. Slice values
// become IN lists. Keys are sorted so the generated SQL is deterministic.
// An empty map yields an empty clause.
func ToWhereClause(filters map[string]any) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	var values []any
	for _, k := range keys {
		switch v := filters[k].(type) {
		case []any:
			if len(v) == 0 {
				// IN over an empty list matches nothing.
				conds = append(conds, "1 = 0")
				continue
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", k, placeholders(len(v))))
			values = append(values, v...)
		case []string:
			if len(v) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", k, placeholders(len(v))))
			for _, s := range v {
				values = append(values, s)
			}
		case []int64:
			if len(v) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", k, placeholders(len(v))))
			for _, n := range v {
				values = append(values, n)
			}
		case nil:
			conds = append(conds, fmt.Sprintf("%s IS NULL", k))
		default:
			conds = append(conds, fmt.Sprintf("%s = ?", k))
			values = append(values, v)
		}
	}

	return "WHERE " + strings.Join(conds, " AND "), values
}

// ToUpdateClause builds a SET clause from a column → value map, sorted by column.
func ToUpdateClause(fields map[string]any) (string, []any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assigns := make([]string, 0, len(keys))
	values := make([]any, 0, len(keys))
	for _, k := range keys {
		assigns = append(assigns, fmt.Sprintf("%s = ?", k))
		values = append(values, fields[k])
	}

	return "SET " + strings.Join(assigns, ", "), values
}

// PrepareInsert builds the column list, placeholder list and value slice for an
// INSERT from a column → value map, sorted by column.
func PrepareInsert(row map[string]any) (string, string, []any) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]any, 0, len(keys))
	for _, k := range keys {
		values = append(values, row[k])
	}

	return strings.Join(keys, ", "), placeholders(len(keys)), values
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
