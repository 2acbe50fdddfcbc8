package ec

import (
	"errors"
	"testing"
	"time"

	"github.com/junevm/flashunlock/internal/hw/hwtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleep records sleeps instead of blocking.
type fakeSleep struct {
	calls []time.Duration
}

func (f *fakeSleep) sleep(d time.Duration) {
	f.calls = append(f.calls, d)
}

func newController(p *hwtest.Platform) (*Controller, *fakeSleep) {
	s := &fakeSleep{}
	return New(p, WithSleep(s.sleep)), s
}

func TestReadWriteRegister(t *testing.T) {
	p := hwtest.New()
	c, _ := newController(p)

	require.NoError(t, c.WriteRegister(0x12, 0x02))
	assert.Equal(t, uint8(0x02), p.EC[0x12])

	p.EC[0x40] = 0x5a
	v, err := c.ReadRegister(0x40)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x5a), v)

	require.Equal(t, []hwtest.Access{
		{Port: DefaultIndexPort, Width: 8, Value: 0x12},
		{Port: DefaultDataPort, Width: 8, Value: 0x02},
		{Port: DefaultIndexPort, Width: 8, Value: 0x40},
	}, p.Writes)
}

func TestWithPorts(t *testing.T) {
	p := hwtest.New()
	p.ECIndex, p.ECData = 0x62, 0x63
	c := New(p, WithPorts(0x62, 0x63))

	require.NoError(t, c.WriteRegister(0x01, 0x7f))
	assert.Equal(t, uint8(0x7f), p.EC[0x01])
	assert.Equal(t, uint16(0x62), c.IndexPort())
}

func TestWaitReady(t *testing.T) {
	for _, tc := range []struct {
		name       string
		busyPolls  int
		stuck      bool
		wantPolls  int
		wantSleeps int
		wantErr    error
	}{
		{name: "ready_on_first_poll", busyPolls: 0, wantPolls: 1, wantSleeps: 0},
		{name: "ready_on_second_poll", busyPolls: 1, wantPolls: 2, wantSleeps: 1},
		{name: "ready_on_last_poll", busyPolls: PollBudget - 1, wantPolls: PollBudget, wantSleeps: PollBudget - 1},
		{name: "busy_for_whole_budget", busyPolls: PollBudget, wantPolls: PollBudget, wantSleeps: PollBudget - 1, wantErr: ErrTimeout},
		{name: "stuck", stuck: true, wantPolls: PollBudget, wantSleeps: PollBudget - 1, wantErr: ErrTimeout},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := hwtest.New()
			p.ECBusyPolls = tc.busyPolls
			p.ECStuck = tc.stuck
			c, s := newController(p)

			// Kick the EC so the busy script starts.
			require.NoError(t, c.WriteRegister(StatusRegister, 0xaa))

			err := c.WaitReady()
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantPolls, p.StatusPolls)
			assert.Len(t, s.calls, tc.wantSleeps)
			for _, d := range s.calls {
				assert.Equal(t, PollInterval, d)
			}
		})
	}
}

func TestSendCommand(t *testing.T) {
	p := hwtest.New()
	p.ECBusyPolls = 3
	c, _ := newController(p)

	require.NoError(t, c.SendCommand(0xb8))
	assert.Equal(t, []uint8{0xb8}, p.ECCommands)
	assert.Equal(t, 4, p.StatusPolls)
}

func TestSendCommandTimeout(t *testing.T) {
	p := hwtest.New()
	p.ECStuck = true
	c := New(p, WithSleep(func(time.Duration) {}), WithPollBudget(5))

	err := c.SendCommand(0xb8)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "0xb8")
	assert.Equal(t, 5, p.StatusPolls)
}

func TestSetFlashDescriptorOverride(t *testing.T) {
	p := hwtest.New()
	c, _ := newController(p)

	require.NoError(t, c.SetFlashDescriptorOverride())
	assert.Equal(t, uint8(FDOSetOverride), p.EC[FDOArgRegister])
	assert.Equal(t, []uint8{FDOCommandCode}, p.ECCommands)

	// The argument must be in place before the command byte goes out.
	require.Equal(t, []hwtest.Access{
		{Port: DefaultIndexPort, Width: 8, Value: FDOArgRegister},
		{Port: DefaultDataPort, Width: 8, Value: uint32(FDOSetOverride)},
		{Port: DefaultIndexPort, Width: 8, Value: StatusRegister},
		{Port: DefaultDataPort, Width: 8, Value: FDOCommandCode},
		{Port: DefaultIndexPort, Width: 8, Value: StatusRegister},
	}, p.Writes)
}

func TestPortFailure(t *testing.T) {
	boom := errors.New("boom")
	c := New(hwtest.FailingPort{Err: boom})

	_, err := c.ReadRegister(0)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, c.WaitReady(), boom)
	require.ErrorIs(t, c.FDOCommand(FDOQuery), boom)
}

func TestFDOArgString(t *testing.T) {
	assert.Equal(t, "set-override", FDOSetOverride.String())
	assert.Equal(t, "FDOArg(7)", FDOArg(7).String())
}
