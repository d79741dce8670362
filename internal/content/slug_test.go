package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":               "hello-world",
		"  Django -- Tips & Tricks ": "django-tips-tricks",
		"Café Crème Brûlée":         "cafe-creme-brulee",
		"snake_case title":          "snake_case-title",
		"नेपाल":                     "",
		"---":                       "",
		"Go 1.22 released!":         "go-122-released",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	require.Len(t, Slugify(string(long)), maxSlugLen)

	// the word after the cut must not push the slug past the limit
	got := Slugify(strings.Repeat("a", 99) + " bc")
	require.Equal(t, strings.Repeat("a", 99), got)

	got = Slugify(strings.Repeat("a", 98) + " bc")
	require.Equal(t, strings.Repeat("a", 98)+"-b", got)
}

func TestUniqueSlugFitsColumn(t *testing.T) {
	base := strings.Repeat("b", maxSlugLen)
	used := map[string]bool{base: true}
	taken := func(_ context.Context, s string) (bool, error) { return used[s], nil }

	got, err := uniqueSlug(context.Background(), base, taken)
	require.NoError(t, err)
	require.Len(t, got, maxSlugLen)
	require.Equal(t, strings.Repeat("b", maxSlugLen-2)+"-2", got)

	// no double hyphen when the cut lands on one
	base = strings.Repeat("c", maxSlugLen-3) + "-cc"
	used = map[string]bool{base: true}
	got, err = uniqueSlug(context.Background(), base, taken)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("c", maxSlugLen-3)+"-2", got)
	require.LessOrEqual(t, len(got), maxSlugLen)
}

func TestUniqueSlug(t *testing.T) {
	used := map[string]bool{"intro": true, "intro-2": true}
	taken := func(_ context.Context, s string) (bool, error) { return used[s], nil }

	got, err := uniqueSlug(context.Background(), "intro", taken)
	require.NoError(t, err)
	require.Equal(t, "intro-3", got)

	got, err = uniqueSlug(context.Background(), "outro", taken)
	require.NoError(t, err)
	require.Equal(t, "outro", got)

	boom := errors.New("boom")
	_, err = uniqueSlug(context.Background(), "x", func(context.Context, string) (bool, error) { return false, boom })
	require.ErrorIs(t, err, boom)
}
