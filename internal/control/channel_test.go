package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakbridge/oakbridge/internal/camera"
)

func TestChannelDeliversInSubmissionOrder(t *testing.T) {
	c := NewChannel(8)

	submitted := []camera.Command{
		camera.NewSetFocus(120),
		camera.NewSetExposure(5000, 400),
		camera.NewSetWhiteBalance(5600),
		camera.TriggerAutofocus{},
	}
	for _, cmd := range submitted {
		require.NoError(t, c.Submit(cmd))
	}

	for i, want := range submitted {
		got, ok := c.TryRecv()
		require.True(t, ok, "command %d should be pending", i)
		assert.Equal(t, want, got)
	}

	_, ok := c.TryRecv()
	assert.False(t, ok, "channel should be drained")
}

func TestChannelBusyAtCapacity(t *testing.T) {
	c := NewChannel(2)

	require.NoError(t, c.Submit(camera.NewSetFocus(1)))
	require.NoError(t, c.Submit(camera.NewSetFocus(2)))

	err := c.Submit(camera.NewSetFocus(3))
	require.ErrorIs(t, err, ErrBusy, "a full channel must refuse, not block or drop")

	// Refusal leaves the queued commands untouched.
	got, ok := c.TryRecv()
	require.True(t, ok)
	assert.Equal(t, camera.NewSetFocus(1), got)

	// One slot freed; submission works again.
	require.NoError(t, c.Submit(camera.NewSetFocus(4)))
}

func TestChannelConsumeOnce(t *testing.T) {
	c := NewChannel(4)
	require.NoError(t, c.Submit(camera.TriggerAutofocus{}))

	_, ok := c.TryRecv()
	require.True(t, ok)
	_, ok = c.TryRecv()
	assert.False(t, ok, "a delivered command must not be delivered again")
}

func TestChannelCapacityFallback(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"explicit", 4, 4},
		{"zero falls back", 0, DefaultCapacity},
		{"negative falls back", -1, DefaultCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChannel(tt.capacity)
			assert.Equal(t, tt.want, c.Stats().Capacity)
		})
	}
}

func TestChannelStats(t *testing.T) {
	c := NewChannel(2)

	require.NoError(t, c.Submit(camera.NewSetFocus(1)))
	require.NoError(t, c.Submit(camera.NewSetFocus(2)))
	require.ErrorIs(t, c.Submit(camera.NewSetFocus(3)), ErrBusy)
	_, ok := c.TryRecv()
	require.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Capacity)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, uint64(2), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, 1, c.Pending())
}
