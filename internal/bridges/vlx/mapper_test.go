package vlx

import "testing"

func TestMapper_RoundTrip(t *testing.T) {
	for _, p := range []int{0, 1, 37, 50, 99, 100} {
		m := NewMapper(false, 0)

		raw, clamped := m.Target(p)
		if raw != p || clamped {
			t.Fatalf("Target(%d) = %d, %v; want %d, false", p, raw, clamped, p)
		}

		state := m.Observe(p, p)
		if state.Movement != MovementIdle {
			t.Errorf("Observe(%d) movement = %v, want idle", p, state.Movement)
		}
		if state.Position != p {
			t.Errorf("Observe(%d) position = %d, want %d", p, state.Position, p)
		}
		if _, ok := m.Outstanding(); ok {
			t.Errorf("target still outstanding after reaching %d", p)
		}
	}
}

func TestMapper_Movement(t *testing.T) {
	tests := []struct {
		name   string
		target int
		raw    int
		want   Movement
	}{
		{"opening", 0, 60, MovementOpening},
		{"closing", 100, 40, MovementClosing},
		{"arrived", 40, 40, MovementIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(false, 0)
			m.Target(tt.target)
			if got := m.Observe(tt.raw, tt.target).Movement; got != tt.want {
				t.Errorf("Observe() movement = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapper_NoTargetIsIdle(t *testing.T) {
	m := NewMapper(false, 0)
	if got := m.Observe(30, 30).Movement; got != MovementIdle {
		t.Errorf("movement without target = %v, want idle", got)
	}

	m.Target(80)
	m.Clear()
	if got := m.Observe(30, 30).Movement; got != MovementIdle {
		t.Errorf("movement after Clear = %v, want idle", got)
	}
}

func TestMapper_KeepOpenClamp(t *testing.T) {
	m := NewMapper(false, 20)
	m.SetLimited(true)

	for _, requested := range []int{100, 21, 20, 5, 0} {
		raw, clamped := m.Target(requested)
		if raw > 20 {
			t.Errorf("Target(%d) = %d, want <= 20", requested, raw)
		}
		if wantClamped := requested > 20; clamped != wantClamped {
			t.Errorf("Target(%d) clamped = %v, want %v", requested, clamped, wantClamped)
		}
	}

	m.SetLimited(false)
	if raw, _ := m.Target(100); raw != 100 {
		t.Errorf("Target(100) with keep-open off = %d, want 100", raw)
	}
}

func TestMapper_AwningInversion(t *testing.T) {
	m := NewMapper(true, 0)

	if got := m.Observe(0, 0).Position; got != 100 {
		t.Errorf("raw 0 published as %d, want 100", got)
	}
	if got := m.Observe(100, 100).Position; got != 0 {
		t.Errorf("raw 100 published as %d, want 0", got)
	}

	// Raw target 0 from raw 60 is a device "opening"; the bus sees closing.
	raw, _ := m.Target(100)
	if raw != 0 {
		t.Fatalf("Target(100) raw = %d, want 0", raw)
	}
	state := m.Observe(60, 0)
	if state.Movement != MovementClosing {
		t.Errorf("raw opening published as %v, want closing", state.Movement)
	}
	if state.Position != 40 {
		t.Errorf("raw 60 published as %d, want 40", state.Position)
	}
}

func TestMapper_InvertedClampUsesRawPositions(t *testing.T) {
	m := NewMapper(true, 20)
	m.SetLimited(true)

	// Bus 0 is raw 100, which exceeds the raw limit.
	raw, clamped := m.Target(0)
	if raw != 20 || !clamped {
		t.Errorf("Target(0) = %d, %v; want 20, true", raw, clamped)
	}
}

func TestMapper_OutOfRangeClamped(t *testing.T) {
	m := NewMapper(false, 0)

	if got := m.Observe(-3, -3).Position; got != 0 {
		t.Errorf("Observe(-3) position = %d, want 0", got)
	}
	if got := m.Observe(0xF7FF, 0xF7FF).Position; got != 100 {
		t.Errorf("Observe(0xF7FF) position = %d, want 100", got)
	}
}

func TestCoverState_BusState(t *testing.T) {
	tests := []struct {
		state CoverState
		want  string
	}{
		{CoverState{Position: 100}, StateClosed},
		{CoverState{Position: 0}, StateOpen},
		{CoverState{Position: 99}, StateOpen},
		{CoverState{Position: 50, Movement: MovementOpening}, StateOpening},
		{CoverState{Position: 100, Movement: MovementClosing}, StateClosing},
	}

	for _, tt := range tests {
		if got := tt.state.BusState(); got != tt.want {
			t.Errorf("%+v.BusState() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestMapper_LimitedFlagCarried(t *testing.T) {
	m := NewMapper(false, 10)
	if m.Observe(5, 5).Limited {
		t.Error("Limited = true before SetLimited")
	}
	m.SetLimited(true)
	if !m.Limited() || !m.Observe(5, 5).Limited {
		t.Error("Limited not reported after SetLimited(true)")
	}
}

func TestMapper_DeviceTarget(t *testing.T) {
	tests := []struct {
		name         string
		busTarget    int
		sendTarget   bool
		raw          int
		deviceTarget int
		want         Movement
		wantPending  bool
	}{
		{"following our target", 0, true, 60, 0, MovementOpening, true},
		{"halted short of target", 0, true, 60, 60, MovementIdle, false},
		{"retargeted elsewhere", 0, true, 60, 100, MovementClosing, false},
		{"device target unknown", 0, true, 60, 0xF7FF, MovementOpening, true},
		{"moved by another controller", 0, false, 60, 100, MovementClosing, false},
		{"idle without target", 0, false, 60, 60, MovementIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(false, 0)
			if tt.sendTarget {
				m.Target(tt.busTarget)
			}
			if got := m.Observe(tt.raw, tt.deviceTarget).Movement; got != tt.want {
				t.Errorf("Observe() movement = %v, want %v", got, tt.want)
			}
			if _, pending := m.Outstanding(); pending != tt.wantPending {
				t.Errorf("outstanding = %v, want %v", pending, tt.wantPending)
			}
		})
	}
}

func TestMapper_HaltedCoverStaysIdle(t *testing.T) {
	m := NewMapper(false, 0)
	m.Target(0)

	for i := 0; i < 3; i++ {
		if got := m.Observe(60, 60).BusState(); got != StateOpen {
			t.Fatalf("update %d: state = %q, want open", i, got)
		}
	}
}

func TestMapper_Restore(t *testing.T) {
	m := NewMapper(false, 0)
	m.Target(10)

	raw, ok := m.Outstanding()
	m.Clear()
	m.Restore(raw, ok)

	if got, pending := m.Outstanding(); !pending || got != 10 {
		t.Errorf("Outstanding() = %d, %v; want 10, true", got, pending)
	}
}

func TestMapper_Enforce(t *testing.T) {
	tests := []struct {
		name    string
		limited bool
		raw     int
		want    int
		wantOK  bool
	}{
		{"off", false, 100, 0, false},
		{"beyond limit", true, 100, 20, true},
		{"at limit", true, 20, 0, false},
		{"inside limit", true, 5, 0, false},
		{"unknown position", true, 0xF7FF, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(false, 20)
			m.SetLimited(tt.limited)

			got, ok := m.Enforce(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Enforce(%d) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
			if _, pending := m.Outstanding(); pending != tt.wantOK {
				t.Errorf("outstanding = %v, want %v", pending, tt.wantOK)
			}
		})
	}
}
