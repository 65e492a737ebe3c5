// Package dataset holds the naming rules shared by every storage backend:
// how dataset names are built, how a dataset produced under older search
// options is found again, and how rows are rendered for text formats.
package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampLayout prefixes every generated dataset name.
const TimestampLayout = "2006-01-02 15.04.05"

const sep = "_"

// Name joins a timestamp and the remaining parts into a dataset name.
func Name(at time.Time, parts ...string) string {
	return strings.Join(append([]string{at.Format(TimestampLayout)}, parts...), sep)
}

// identity strips the leading timestamp segment from a dataset name.
func identity(name string) (string, bool) {
	_, rest, ok := strings.Cut(name, sep)
	return rest, ok
}

// candidate returns the identity an existing dataset would carry if it had
// been created with oldSuffix instead of the options encoded in newName.
func candidate(newName, oldSuffix string) (string, bool) {
	if oldSuffix == "" {
		return "", false
	}
	rest, ok := identity(newName)
	if !ok {
		return "", false
	}
	if rest == oldSuffix || strings.HasSuffix(rest, sep+oldSuffix) {
		return "", false
	}
	k := len(strings.Split(oldSuffix, sep))
	segments := strings.Split(rest, sep)
	if len(segments) <= k {
		return oldSuffix, true
	}
	return strings.Join(append(segments[:len(segments)-k:len(segments)-k], oldSuffix), sep), true
}

// Stale picks the existing dataset that should be renamed to newName because
// it was written under oldSuffix. The most recent match wins. Nothing is
// returned when newName already exists.
func Stale(existing []string, newName, oldSuffix string) (string, bool) {
	want, ok := candidate(newName, oldSuffix)
	if !ok {
		return "", false
	}
	var matches []string
	for _, name := range existing {
		if name == newName {
			return "", false
		}
		if rest, ok := identity(name); ok && rest == want {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[len(matches)-1], true
}

// Strings renders a row for text formats.
func Strings(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case nil:
		case string:
			out[i] = t
		default:
			out[i] = fmt.Sprint(t)
		}
	}
	return out
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
