package cart

import "testing"

func TestNoMBC_ReadsROMDirectly(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0x42
	m := NewNoMBC(rom)
	if got := m.Read(0x0100); got != 0x42 {
		t.Fatalf("got %#02x want 0x42", got)
	}
}

func TestNoMBC_OutOfRangeReadsFF(t *testing.T) {
	rom := make([]byte, 0x4000)
	m := NewNoMBC(rom)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("got %#02x want 0xFF for unmapped external RAM", got)
	}
}

func TestNoMBC_WritesAreIgnored(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x2000] = 0x11
	m := NewNoMBC(rom)
	m.Write(0x2000, 0x99)
	if got := m.Read(0x2000); got != 0x11 {
		t.Fatalf("write to ROM region mutated backing array, got %#02x", got)
	}
}
