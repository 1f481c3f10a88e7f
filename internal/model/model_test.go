package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libtrack/borrowing-service/internal/model"
)

func TestDate_JSON(t *testing.T) {
	t.Parallel()

	d := model.Date{Time: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)}
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"2026-08-28"`, string(raw))

	var back model.Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-09-11"`), &back))
	require.Equal(t, time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC), back.Time)

	require.Error(t, json.Unmarshal([]byte(`"28.08.2026"`), &back))
}

func TestBorrowing_Active(t *testing.T) {
	t.Parallel()

	b := model.Borrowing{}
	require.True(t, b.Active())

	d := model.Date{Time: time.Now()}
	b.ActualReturnDate = &d
	require.False(t, b.Active())
}
