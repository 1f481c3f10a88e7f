package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	t.Parallel()
	day := func(s string) time.Time {
		d, err := time.Parse(time.DateOnly, s)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "same day", a: "2026-08-28", b: "2026-08-28", want: 0},
		{name: "one day", a: "2026-08-28", b: "2026-08-29", want: 1},
		{name: "across month", a: "2026-08-28", b: "2026-09-02", want: 5},
		{name: "early return is negative", a: "2026-08-28", b: "2026-08-26", want: -2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, daysBetween(day(tt.a), day(tt.b)))
		})
	}
}

func TestColumns(t *testing.T) {
	t.Parallel()
	require.Equal(t, "id, title, author", columns([]string{"id", "title", "author"}))
	require.Equal(t, []string{"p.id", "p.status"}, prefixed("p", []string{"id", "status"}))
}
