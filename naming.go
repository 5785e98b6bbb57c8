package strata

import (
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

// Pluralize returns the plural form of a lower-case word: a consonant
// followed by "y" becomes "ies", words ending in "s", "x", "z", "sh" or "ch"
// take "es", all others take "s".
func Pluralize(word string) string {
	switch {
	case word == "":
		return word
	case consonantY(word):
		return word[:len(word)-1] + "ies"
	case hasSuffix(word, "s", "x", "z", "sh", "ch"):
		return word + "es"
	default:
		return word + "s"
	}
}

// Singularize returns the singular form of the last "_" separated segment
// of a table name, so "blog_posts" becomes "blog_post" and "analyses"
// becomes "analysis".
func Singularize(word string) string {
	i := strings.LastIndexByte(word, '_')
	return word[:i+1] + inflect.Singularize(word[i+1:])
}

// TableName derives the table name of a schema type: "BlogPost" becomes
// "blog_posts", "Category" becomes "categories".
func TableName(typeName string) string {
	snake := inflect.Underscore(typeName)
	i := strings.LastIndexByte(snake, '_')
	return snake[:i+1] + Pluralize(snake[i+1:])
}

// ForeignKey returns the conventional foreign key column referencing the
// given table: "users" becomes "user_id".
func ForeignKey(table string) string {
	return Singularize(table) + "_id"
}

// PivotTable returns the conventional pivot table of a many-to-many relation
// between two tables: the singular table names in alphabetical order joined
// by "_", e.g. "posts" and "tags" give "post_tag".
func PivotTable(a, b string) string {
	names := []string{Singularize(a), Singularize(b)}
	sort.Strings(names)
	return names[0] + "_" + names[1]
}

func consonantY(word string) bool {
	n := len(word)
	return n >= 2 && word[n-1] == 'y' && !isVowel(word[n-2])
}

func isVowel(c byte) bool {
	return strings.IndexByte("aeiou", c) >= 0
}

func hasSuffix(word string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(word, s) {
			return true
		}
	}
	return false
}
