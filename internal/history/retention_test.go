package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPolicy(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var entries []Entry
	for i := 0; i < 10; i++ {
		status := "success"
		if i%4 == 3 {
			status = "interrupted"
		}
		entries = append(entries, entry(fmt.Sprintf("run%d", i), status, now.Add(-time.Duration(i)*24*time.Hour)))
	}

	tests := []struct {
		name   string
		policy Policy
		want   []string
	}{
		{
			name:   "keep everything",
			policy: Policy{KeepFailed: true},
			want:   nil,
		},
		{
			name:   "drop failed",
			policy: Policy{},
			want:   []string{"run3", "run7"},
		},
		{
			name:   "max entries",
			policy: Policy{MaxEntries: 4, KeepFailed: true},
			want:   []string{"run4", "run5", "run6", "run7", "run8", "run9"},
		},
		{
			name:   "max entries counts only kept runs",
			policy: Policy{MaxEntries: 4},
			want:   []string{"run3", "run5", "run6", "run7", "run8", "run9"},
		},
		{
			name:   "max age",
			policy: Policy{MaxAge: 5*24*time.Hour + time.Minute, KeepFailed: true},
			want:   []string{"run6", "run7", "run8", "run9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]Entry(nil), entries...)
			// Shuffle the order to check that the policy sorts.
			input[0], input[9] = input[9], input[0]
			assert.Equal(t, tt.want, ApplyPolicy(input, tt.policy, now))
		})
	}

	assert.Nil(t, ApplyPolicy(nil, DefaultPolicy(), now))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"90m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"3months", 90 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"d", 0, true},
		{"5x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2 years", FormatDuration(800*24*time.Hour))
	assert.Equal(t, "3 months", FormatDuration(95*24*time.Hour))
	assert.Equal(t, "2 weeks", FormatDuration(15*24*time.Hour))
	assert.Equal(t, "3 days", FormatDuration(3*24*time.Hour))
	assert.Equal(t, "5h0m0s", FormatDuration(5*time.Hour))
}
