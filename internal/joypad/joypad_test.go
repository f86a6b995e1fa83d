package joypad

import "testing"

func TestStartPressSelectButtons(t *testing.T) {
	j := New()
	j.Write(0x10) // bit4 set routes Select/Start into the high pair
	j.SetKeyState(Start, true)

	v := j.Read()
	if v&0x10 == 0 {
		t.Fatalf("expected bit4 to read back set")
	}
	if v&0x08 != 0 {
		t.Fatalf("expected Start bit cleared (pressed, active-low) in JOYP, got %#x", v)
	}
}

func TestReleasedButtonsReadHigh(t *testing.T) {
	j := New()
	if j.Read()&0x0F != 0x0F {
		t.Fatalf("expected all released buttons to read as 1s")
	}
}

func TestResetReleasesAllButtons(t *testing.T) {
	j := New()
	j.SetKeyState(A, true)
	j.Reset()
	if j.Read()&0x0F != 0x0F {
		t.Fatalf("expected reset to release all buttons")
	}
}
