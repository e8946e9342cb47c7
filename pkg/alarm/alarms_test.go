package alarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveAlarms(t *testing.T) {
	a := New()

	assert.True(t, a.Add("Bedroom", "no sensor state"))
	assert.False(t, a.Add("Bedroom", "no thermostat state"))
	assert.True(t, a.Add("Bathroom", "no sensor state"))

	assert.Equal(t, []Alarm{
		{Key: "Bathroom", Reason: "no sensor state"},
		{Key: "Bedroom", Reason: "no thermostat state"},
	}, a.Active())

	assert.True(t, a.Remove("Bedroom"))
	assert.False(t, a.Remove("Bedroom"))
	assert.Len(t, a.Active(), 1)

	assert.True(t, a.Clear())
	assert.False(t, a.Clear())
	assert.Empty(t, a.Active())
}

func TestZeroValue(t *testing.T) {
	a := &ActiveAlarms{}
	assert.False(t, a.Remove("x"))
	assert.True(t, a.Add("x", "y"))
}
