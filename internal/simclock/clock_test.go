package simclock

import "testing"

func TestNewClockStartsPaused(t *testing.T) {
	c := New("run-1")
	if !c.Paused {
		t.Fatalf("expected new clock to start paused")
	}
	if c.CurrentTick != 0 {
		t.Fatalf("expected tick 0, got %d", c.CurrentTick)
	}
}

func TestAdvanceIncrementsByOne(t *testing.T) {
	c := New("run-1")
	c.Resume()
	for want := uint64(1); want <= 5; want++ {
		got := c.Advance()
		if got != want {
			t.Fatalf("advance %d: got %d", want, got)
		}
	}
}

func TestSpeedRoundTrip(t *testing.T) {
	for _, speed := range []Speed{Normal, Accelerated, FastForward} {
		parsed, err := ParseSpeed(speed.String())
		if err != nil {
			t.Fatalf("parse %v: %v", speed, err)
		}
		if parsed != speed {
			t.Fatalf("round trip mismatch: %v != %v", parsed, speed)
		}
	}
}

func TestTicksPerRealSecond(t *testing.T) {
	cases := map[Speed]uint32{Normal: 1, Accelerated: 7, FastForward: 30}
	for speed, want := range cases {
		if got := speed.TicksPerRealSecond(); got != want {
			t.Fatalf("%v: got %d want %d", speed, got, want)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := New("run-1")
	c.Resume()
	c.Advance()
	c.SetSpeed(Accelerated)

	restored, err := FromSnapshot(c.ToSnapshot())
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	if *restored != *c {
		t.Fatalf("snapshot round trip mismatch: %+v != %+v", *restored, *c)
	}
}
