package protocol

import "testing"

func TestParseEUI(t *testing.T) {
	eui, err := ParseEUI("7D:00:22:EA:82:60:3B:9C")
	if err != nil {
		t.Fatalf("ParseEUI() error = %v", err)
	}
	if eui != (EUI{0x7D, 0x00, 0x22, 0xEA, 0x82, 0x60, 0x3B, 0x9C}) {
		t.Errorf("ParseEUI() = %v", eui)
	}
	if got := eui.String(); got != "7D:00:22:EA:82:60:3B:9C" {
		t.Errorf("String() = %q", got)
	}
	if got := eui.ShortAddress(); got != 0x7D00 {
		t.Errorf("ShortAddress() = %04X, want 7D00", got)
	}

	for _, bad := range []string{"", "7D:00", "7D:00:22:EA:82:60:3B", "ZZ:00:22:EA:82:60:3B:9C"} {
		if _, err := ParseEUI(bad); err == nil {
			t.Errorf("ParseEUI(%q) expected error", bad)
		}
	}
}

func TestBlinkFrameRoundTrip(t *testing.T) {
	eui := EUI{0x7D, 0x00, 0x22, 0xEA, 0x82, 0x60, 0x3B, 0x9C}
	var f Framer
	var buf [FrameBufLen]byte

	n := f.EncodeBlink(buf[:], eui, 0x7D00)
	if n != BlinkLen {
		t.Fatalf("EncodeBlink() length = %d, want %d", n, BlinkLen)
	}

	kind, ok := DecodeKind(buf[:n])
	if !ok || kind != KindBlink {
		t.Fatalf("DecodeKind() = %v, %v", kind, ok)
	}
	gotEUI, gotShort := DecodeBlink(buf[:n])
	if gotEUI != eui {
		t.Errorf("DecodeBlink() eui = %v, want %v", gotEUI, eui)
	}
	if gotShort != 0x7D00 {
		t.Errorf("DecodeBlink() short = %04X, want 7D00", gotShort)
	}
	if got := DecodeSource(buf[:n], KindBlink); got != 0x7D00 {
		t.Errorf("DecodeSource() = %04X, want 7D00", got)
	}
}

func TestShortMACFrame(t *testing.T) {
	var f Framer
	var buf [FrameBufLen]byte

	n := f.EncodeShort(buf[:], 0x7D00, 0x0101)
	if n != ShortMACLen {
		t.Fatalf("EncodeShort() length = %d, want %d", n, ShortMACLen)
	}
	buf[n] = byte(KindPollAck)

	kind, ok := DecodeKind(buf[:n+1])
	if !ok || kind != KindPollAck {
		t.Fatalf("DecodeKind() = %v, %v", kind, ok)
	}
	if got := DecodeSource(buf[:n+1], kind); got != 0x7D00 {
		t.Errorf("DecodeSource() = %04X, want 7D00", got)
	}
	if got := DecodeDest(buf[:n+1]); got != 0x0101 {
		t.Errorf("DecodeDest() = %04X, want 0101", got)
	}
}

func TestLongMACFrame(t *testing.T) {
	var f Framer
	var buf [FrameBufLen]byte
	dest := EUI{0x7D, 0x00, 0x22, 0xEA, 0x82, 0x60, 0x3B, 0x9C}

	n := f.EncodeLong(buf[:], 0x0101, dest)
	if n != LongMACLen {
		t.Fatalf("EncodeLong() length = %d, want %d", n, LongMACLen)
	}
	buf[n] = byte(KindRangingInit)

	kind, ok := DecodeKind(buf[:n+1])
	if !ok || kind != KindRangingInit {
		t.Fatalf("DecodeKind() = %v, %v", kind, ok)
	}
	if got := DecodeSource(buf[:n+1], kind); got != 0x0101 {
		t.Errorf("DecodeSource() = %04X, want 0101", got)
	}
}

func TestDecodeKindRejectsUnknown(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x41}},
		{"unknown control", []byte{0x99, 0x88, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"short mac truncated", []byte{0x41, 0x88, 0x00}},
		{"long mac truncated", []byte{0x41, 0x8C, 0x00, 0x00}},
		{"blink truncated", []byte{0xC5, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := DecodeKind(tt.frame); ok {
				t.Errorf("DecodeKind() accepted malformed frame")
			}
		})
	}
}

func TestFramerSequenceAdvances(t *testing.T) {
	var f Framer
	var a, b [FrameBufLen]byte
	f.EncodeShort(a[:], 1, 2)
	f.EncodeShort(b[:], 1, 2)
	if a[2] == b[2] {
		t.Errorf("sequence number did not advance: %d == %d", a[2], b[2])
	}
}
