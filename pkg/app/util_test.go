package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelay(t *testing.T) {
	var tests = []struct {
		name     string
		now      time.Time
		period   time.Duration
		expected time.Duration
	}{
		{
			name:     "control period",
			now:      time.Date(2024, 2, 1, 18, 12, 10, 0, time.UTC),
			period:   30 * time.Second,
			expected: 20 * time.Second,
		},
		{
			name:     "on the boundary waits a full period",
			now:      time.Date(2024, 2, 1, 18, 12, 30, 0, time.UTC),
			period:   30 * time.Second,
			expected: 30 * time.Second,
		},
		{
			name:     "external period",
			now:      time.Date(2024, 2, 1, 18, 12, 2, 0, time.UTC),
			period:   5 * time.Minute,
			expected: 2*time.Minute + 58*time.Second,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nextDelay(tt.now, tt.period))
		})
	}
}
