package content

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 100

// Slugify lowercases title, folds accented letters to ASCII and joins words with hyphens.
// Characters outside [a-z0-9_] are dropped.
func Slugify(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	pendingDash := false
scan:
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			dash := pendingDash && b.Len() > 0
			need := 1
			if dash {
				need = 2
			}
			if b.Len()+need > maxSlugLen {
				break scan
			}
			if dash {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return strings.Trim(b.String(), "-_")
}

// uniqueSlug appends -2, -3, ... to base until taken reports false. The base
// is shortened so the suffixed slug still fits maxSlugLen.
func uniqueSlug(ctx context.Context, base string, taken func(context.Context, string) (bool, error)) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		suffix := "-" + strconv.Itoa(n)
		candidate = truncateSlug(base, maxSlugLen-len(suffix)) + suffix
	}
}

func truncateSlug(s string, limit int) string {
	if len(s) > limit {
		s = s[:limit]
	}
	return strings.TrimRight(s, "-")
}
