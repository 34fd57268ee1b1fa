package gates

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/metals-desk/quotes-bot/internal/errors"
)

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockSettings) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	args := m.Called(ctx, key, fallback)
	return args.Bool(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOfferGate_Check(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	// Monday 2026-09-07.
	workingHours := time.Date(2026, 9, 7, 12, 0, 0, 0, moscow)

	testCases := []struct {
		name       string
		now        time.Time
		enabled    bool
		wantClosed bool
	}{
		{name: "open during business hours", now: workingHours, enabled: true},
		{name: "flag disabled", now: workingHours, enabled: false, wantClosed: true},
		{name: "weekend", now: time.Date(2026, 9, 5, 12, 0, 0, 0, moscow), enabled: true, wantClosed: true},
		{name: "before opening", now: time.Date(2026, 9, 7, 9, 59, 0, 0, moscow), enabled: true, wantClosed: true},
		{name: "after closing", now: time.Date(2026, 9, 7, 18, 0, 0, 0, moscow), enabled: true, wantClosed: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			settings := &mockSettings{}
			settings.On("GetBool", mock.Anything, "offers_enabled", mock.Anything).
				Return(tc.enabled, nil).Maybe()

			gate := NewOfferGate(settings, nil, moscow, 10, 18, true, testLogger())
			gate.now = fixedClock(tc.now)

			err := gate.Check(context.Background())
			if tc.wantClosed {
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "E120", appErr.Code)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOfferGate_HolidayCloses(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "holidays.yaml")
	require.NoError(t, os.WriteFile(path, []byte("holidays:\n  - 2026-09-07\nrecurring:\n  - 01-01\n"), 0o600))

	cal, err := LoadCalendar(path)
	require.NoError(t, err)

	settings := &mockSettings{}
	settings.On("GetBool", mock.Anything, "offers_enabled", mock.Anything).Return(true, nil)

	gate := NewOfferGate(settings, cal, moscow, 10, 18, true, testLogger())
	gate.now = fixedClock(time.Date(2026, 9, 7, 12, 0, 0, 0, moscow))

	var appErr *apperrors.AppError
	require.ErrorAs(t, gate.Check(context.Background()), &appErr)
	assert.Equal(t, "E120", appErr.Code)

	// Recurring date on an otherwise working day (2027-01-01 is a Friday).
	gate.now = fixedClock(time.Date(2027, 1, 1, 12, 0, 0, 0, moscow))
	require.ErrorAs(t, gate.Check(context.Background()), &appErr)
}

func TestLoadCalendar_MissingFileIsEmpty(t *testing.T) {
	cal, err := LoadCalendar("does/not/exist.yaml")
	require.NoError(t, err)
	assert.False(t, cal.IsHoliday(time.Now()))
}

func TestLoadCalendar_RejectsBadDates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holidays.yaml")
	require.NoError(t, os.WriteFile(path, []byte("holidays:\n  - not-a-date\n"), 0o600))

	_, err := LoadCalendar(path)
	require.Error(t, err)
}
