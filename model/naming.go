package model

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableName derives the conventional table name for an entity type:
// snake_case, pluralized ("BlogPost" -> "blog_posts").
func TableName(entityType string) string {
	return inflection.Plural(toSnake(entityType))
}

// ForeignKeyName derives the conventional foreign key column for a relation
// or entity name ("Author" -> "author_id").
func ForeignKeyName(name string) string {
	return toSnake(name) + "_id"
}

// toSnake converts the provided string to snake_case using ASCII-aware rules.
// Punctuation from reflected type names (pointers, package qualifiers, generic
// suffixes) collapses into single underscores.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if (unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower) && !lastUnderscore {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.Trim(b.String(), "_")
}
