package extract

import (
	"runtime"
	"strings"

	"github.com/forPelevin/gomoji"
)

// Cleaner strips characters that are illegal in file names or that break
// tabular output, and collapses whitespace.
type Cleaner struct {
	replacer *strings.Replacer
}

// NewCleaner builds a Cleaner whose rule set matches the host OS.
func NewCleaner() *Cleaner {
	return newCleaner(runtime.GOOS)
}

func newCleaner(goos string) *Cleaner {
	var illegal []string
	switch goos {
	case "windows", "darwin":
		illegal = []string{"/", "\\", "|", "<", ">", "\"", "?", ":", "*", "\x00"}
	default:
		illegal = []string{"/", "\x00"}
	}
	// Control whitespace is always removed; plain spaces survive.
	illegal = append(illegal, "\t", "\n", "\r", "\x0b", "\x0c")
	pairs := make([]string, 0, len(illegal)*2)
	for _, s := range illegal {
		pairs = append(pairs, s, "")
	}
	return &Cleaner{replacer: strings.NewReplacer(pairs...)}
}

// Filter removes illegal characters.
func (c *Cleaner) Filter(text string) string {
	return c.replacer.Replace(text)
}

// FilterName removes illegal characters and emoji, trims surrounding spaces
// and dots, and returns def if nothing is left.
func (c *Cleaner) FilterName(text, def string) string {
	text = gomoji.RemoveEmojis(c.Filter(text))
	text = strings.Trim(strings.TrimSpace(text), ".")
	if text == "" {
		return def
	}
	return text
}

// ClearSpaces collapses runs of whitespace into single spaces.
func ClearSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Description cleans a work description.
func (c *Cleaner) Description(text string) string {
	return ClearSpaces(c.Filter(text))
}
