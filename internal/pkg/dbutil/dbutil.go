// Package dbutil adapts MySQL-dialect SQL produced by the gendry
// builder to Postgres: placeholder rebinding and the LIMIT clause
// rewrite.
package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize rewrites "LIMIT ?,?" (offset,count order) into
// "LIMIT ? OFFSET ?" with the two arguments swapped, then rebinds all
// placeholders to $n form.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	if loc := limitRegex.FindStringIndex(query); loc != nil {
		offsetPos := strings.Count(query[:loc[0]], "?")
		if offsetPos+1 < len(args) {
			args[offsetPos], args[offsetPos+1] = args[offsetPos+1], args[offsetPos]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}
