package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerTriggersExactlyOnceAfterFullCountdown(t *testing.T) {
	timer := NewTimer(3600 * time.Second)
	timer.Start()

	triggers := 0
	for i := 0; i < 3600; i++ {
		require.Equal(t, Armed, timer.State(), "tick %d", i)
		if timer.Tick() {
			triggers++
		}
	}
	assert.Equal(t, 1, triggers)
	assert.Equal(t, Triggered, timer.State())

	for i := 0; i < 10; i++ {
		assert.False(t, timer.Tick())
	}
}

func TestTimerStopPausesAndCheckInResets(t *testing.T) {
	timer := NewTimer(10 * time.Second)
	timer.Start()
	for i := 0; i < 4; i++ {
		timer.Tick()
	}

	timer.Stop()
	assert.Equal(t, Idle, timer.State())
	assert.Equal(t, 6*time.Second, timer.Remaining())
	assert.False(t, timer.Tick())

	timer.Start()
	timer.Tick()
	assert.Equal(t, 5*time.Second, timer.Remaining())

	timer.CheckIn()
	assert.Equal(t, Idle, timer.State())
	assert.Equal(t, 10*time.Second, timer.Remaining())
}

func TestTimerPanic(t *testing.T) {
	timer := NewTimer(time.Minute)
	assert.True(t, timer.Panic())
	assert.Equal(t, Triggered, timer.State())
	assert.False(t, timer.Panic())

	timer.Start()
	assert.Equal(t, Armed, timer.State())
	assert.Equal(t, time.Minute, timer.Remaining())
}

func TestSOSMessage(t *testing.T) {
	loc := Location{Latitude: 3.139, Longitude: 101.6869}

	assert.Equal(t, "https://www.google.com/maps?q=3.139,101.6869", MapLink(loc))
	assert.Equal(t, "EMERGENCY: I need help. My location: https://www.google.com/maps?q=3.139,101.6869", SOSMessage(loc))
	assert.Equal(t,
		"https://wa.me/60123456789?text=EMERGENCY%3A%20I%20need%20help.%20My%20location%3A%20https%3A%2F%2Fwww.google.com%2Fmaps%3Fq%3D3.139%2C101.6869",
		WhatsAppURL("", SOSMessage(loc)))
	assert.Contains(t, WhatsAppURL("+15550100", "hi"), "https://wa.me/15550100?text=hi")
}

type fakeLocator struct {
	loc Location
	err error
}

func (f *fakeLocator) Locate(context.Context) (Location, error) { return f.loc, f.err }

type fakeMessenger struct{ opened []string }

func (f *fakeMessenger) Open(_ context.Context, u string) error {
	f.opened = append(f.opened, u)
	return nil
}

func TestResponderFallsBackToLastKnownLocation(t *testing.T) {
	loc := &fakeLocator{loc: Location{Latitude: 1, Longitude: 2}}
	msg := &fakeMessenger{}
	r := &Responder{Locator: loc, Messenger: msg}

	got, err := r.Respond(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 1, Longitude: 2}, got)

	loc.err = errors.New("permission denied")
	loc.loc = Location{}
	got, err = r.Respond(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 1, Longitude: 2}, got)
	assert.Len(t, msg.opened, 2)
}

func TestResponderWithoutAnyLocation(t *testing.T) {
	msg := &fakeMessenger{}
	r := &Responder{Locator: &fakeLocator{err: errors.New("timeout")}, Messenger: msg}

	_, err := r.Respond(context.Background())
	assert.ErrorIs(t, err, ErrNoLocation)
	assert.Empty(t, msg.opened)
}

func TestManagerFiresCallbackOnce(t *testing.T) {
	var fired []string
	m := NewManager(3*time.Second, func(_ context.Context, uid string) { fired = append(fired, uid) })

	m.Start("alice")
	m.Start("bob")
	m.Stop("bob")

	for i := 0; i < 5; i++ {
		m.Tick(context.Background())
	}
	assert.Equal(t, []string{"alice"}, fired)
	assert.Equal(t, "triggered", m.Status("alice").State)
	assert.Equal(t, Status{State: "idle", RemainingSeconds: 3, DurationSeconds: 3}, m.Status("bob"))

	st := m.CheckIn("alice")
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, 3, m.Status("alice").RemainingSeconds)
}

func TestManagerPanicSkipsCallback(t *testing.T) {
	called := false
	m := NewManager(time.Second, func(context.Context, string) { called = true })

	assert.Equal(t, "triggered", m.Panic("alice").State)
	m.Tick(context.Background())
	assert.False(t, called)
}

func TestManagerForgetsInactiveTimers(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	m := NewManager(time.Hour, nil)
	m.now = func() time.Time { return now }

	m.Start("armed")
	m.Start("stopped")
	m.Stop("stopped")
	m.Panic("sos")

	m.Tick(context.Background())
	assert.Equal(t, 3, m.Len())

	now = now.Add(InactiveTTL - time.Second)
	m.Tick(context.Background())
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, "triggered", m.Status("sos").State)

	now = now.Add(time.Second)
	m.Tick(context.Background())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "armed", m.Status("armed").State)
	assert.Equal(t, "idle", m.Status("sos").State)
}

func TestManagerActivityRestartsRetention(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	m := NewManager(time.Hour, nil)
	m.now = func() time.Time { return now }

	m.Start("alice")
	m.Stop("alice")
	m.Tick(context.Background())

	now = now.Add(InactiveTTL - time.Minute)
	m.Stop("alice")
	m.Tick(context.Background())

	now = now.Add(time.Hour)
	m.Tick(context.Background())
	assert.Equal(t, 1, m.Len())
}
