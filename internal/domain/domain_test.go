package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleStatus_TransitionsOnlyFromPending(t *testing.T) {
	all := []ScheduleStatus{
		ScheduleStatusPending,
		ScheduleStatusExecuted,
		ScheduleStatusCancelled,
		ScheduleStatusFailed,
	}

	for _, from := range all {
		for _, to := range all {
			got := from.CanTransition(to)
			want := from == ScheduleStatusPending && to != ScheduleStatusPending
			assert.Equalf(t, want, got, "%s -> %s", from, to)
		}
	}
}

func TestScheduleStatus_IsTerminal(t *testing.T) {
	assert.False(t, ScheduleStatusPending.IsTerminal())
	assert.True(t, ScheduleStatusExecuted.IsTerminal())
	assert.True(t, ScheduleStatusCancelled.IsTerminal())
	assert.True(t, ScheduleStatusFailed.IsTerminal())
	assert.False(t, ScheduleStatus("running").Valid())
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "all", want: AllMembers()},
		{in: " ALL ", want: AllMembers()},
		{in: "7", want: MembersOfLevel(7)},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "gold", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTarget))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTarget_StringRoundTrip(t *testing.T) {
	for _, target := range []Target{AllMembers(), MembersOfLevel(42)} {
		parsed, err := ParseTarget(target.String())
		require.NoError(t, err)
		assert.Equal(t, target, parsed)
	}
}

func TestNewScheduleRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		rec, err := NewScheduleRecord(ContentTypePost, 1, now.Add(2*time.Hour), 5, "", now, DefaultMinLead)
		require.NoError(t, err)
		assert.Equal(t, ScheduleStatusPending, rec.Status)
		assert.Equal(t, int64(5), rec.CreatedBy)
		assert.Zero(t, rec.Attempts)
		assert.Nil(t, rec.ExecutedAt)
	})

	t.Run("now is rejected", func(t *testing.T) {
		_, err := NewScheduleRecord(ContentTypePost, 1, now, 1, "", now, DefaultMinLead)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("inside lead window is rejected", func(t *testing.T) {
		_, err := NewScheduleRecord(ContentTypePost, 1, now.Add(30*time.Second), 1, "", now, DefaultMinLead)
		assert.True(t, IsValidation(err))
	})

	t.Run("unknown content type", func(t *testing.T) {
		_, err := NewScheduleRecord("banner", 1, now.Add(time.Hour), 1, "", now, DefaultMinLead)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "content_type", ve.Field)
	})

	t.Run("coupon needs a target", func(t *testing.T) {
		_, err := NewScheduleRecord(ContentTypeCoupon, 3, now.Add(time.Hour), 1, "gold", now, DefaultMinLead)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "action_parameter", ve.Field)
	})
}

func TestScheduleRecord_IsDue(t *testing.T) {
	now := time.Now()
	rec := &ScheduleRecord{Status: ScheduleStatusPending, ScheduledTime: now}
	assert.True(t, rec.IsDue(now))
	assert.False(t, rec.IsDue(now.Add(-time.Second)))

	rec.Status = ScheduleStatusCancelled
	assert.False(t, rec.IsDue(now.Add(time.Hour)))
}
