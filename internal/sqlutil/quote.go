// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
// A dotted name such as "t.col" is quoted part by part.
func QuoteIdentifier(name string) string {
	if strings.Contains(name, ".") && !strings.Contains(name, "`") {
		parts := strings.Split(name, ".")
		for i, p := range parts {
			parts[i] = quotePart(p)
		}
		return strings.Join(parts, ".")
	}
	return quotePart(name)
}

func quotePart(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteIdentifiers quotes every name with QuoteIdentifier.
func QuoteIdentifiers(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return quoted
}
