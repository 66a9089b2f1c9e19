// Package inflect derives table, property and view variable names from
// resource names ("BlogPosts" -> "blog_posts", "blogPost", "Blog Post").
package inflect

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Plural returns the plural form of word.
func Plural(word string) string { return inflection.Plural(word) }

// Singular returns the singular form of word.
func Singular(word string) string { return inflection.Singular(word) }

// Underscore converts CamelCase or dashed words to snake_case.
func Underscore(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && runes[i-1] != '_' && runes[i-1] != '-' && runes[i-1] != ' ' &&
				(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Camelize converts snake_case to CamelCase.
func Camelize(s string) string {
	parts := strings.FieldsFunc(Underscore(s), func(r rune) bool { return r == '_' })
	for i, p := range parts {
		parts[i] = upperFirst(p)
	}
	return strings.Join(parts, "")
}

// Variable converts a name to lowerCamelCase, e.g. "blog_posts" -> "blogPosts".
func Variable(s string) string {
	c := Camelize(s)
	if c == "" {
		return c
	}
	r := []rune(c)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// Humanize converts a name to space separated title words,
// e.g. "blog_posts" -> "Blog Posts".
func Humanize(s string) string {
	parts := strings.FieldsFunc(Underscore(s), func(r rune) bool { return r == '_' })
	for i, p := range parts {
		parts[i] = upperFirst(p)
	}
	return strings.Join(parts, " ")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
