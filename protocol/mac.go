package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// EUI is the 8-byte extended unique identifier of a device.
type EUI [8]byte

// ParseEUI parses the usual colon-separated form, e.g.
// "7D:00:22:EA:82:60:3B:9C".
func ParseEUI(s string) (EUI, error) {
	var eui EUI
	parts := strings.Split(s, ":")
	if len(parts) != len(eui) {
		return eui, fmt.Errorf("%w: %q", ErrBadEUI, s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return eui, fmt.Errorf("%w: %q", ErrBadEUI, s)
		}
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return eui, fmt.Errorf("%w: %q", ErrBadEUI, s)
		}
		eui[i] = byte(b)
	}
	return eui, nil
}

func (e EUI) String() string {
	var sb strings.Builder
	for i, b := range e {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// ShortAddress derives the default 2-byte short address from the first two
// EUI bytes.
func (e EUI) ShortAddress() uint16 {
	return uint16(e[0])<<8 | uint16(e[1])
}

// Framer builds and parses the three MAC frame shapes of the ranging
// protocol. Addresses travel least-significant byte first; the sequence
// number is shared across all frames the framer emits.
type Framer struct {
	seq byte
}

func putEUI(b []byte, eui EUI) {
	for i := range eui {
		b[i] = eui[len(eui)-1-i]
	}
}

func getEUI(b []byte) EUI {
	var eui EUI
	for i := range eui {
		eui[i] = b[len(eui)-1-i]
	}
	return eui
}

// EncodeBlink writes a blink frame announcing eui/short and returns the
// prefix length (the blink frame has no kind byte or payload).
func (f *Framer) EncodeBlink(buf []byte, eui EUI, short uint16) int {
	buf[0] = FrameCtrlBlink
	buf[1] = f.nextSeq()
	putEUI(buf[2:10], eui)
	binary.LittleEndian.PutUint16(buf[10:12], short)
	return BlinkLen
}

// EncodeShort writes a short-MAC prefix (16-bit destination) and returns
// ShortMACLen; the caller places the kind byte and payload after it.
func (f *Framer) EncodeShort(buf []byte, src, dest uint16) int {
	buf[0] = FrameCtrl1
	buf[1] = FrameCtrl2Short
	buf[2] = f.nextSeq()
	binary.LittleEndian.PutUint16(buf[3:5], NetworkID)
	binary.LittleEndian.PutUint16(buf[5:7], dest)
	binary.LittleEndian.PutUint16(buf[7:9], src)
	return ShortMACLen
}

// EncodeLong writes a long-MAC prefix (64-bit destination) and returns
// LongMACLen.
func (f *Framer) EncodeLong(buf []byte, src uint16, dest EUI) int {
	buf[0] = FrameCtrl1
	buf[1] = FrameCtrl2Long
	buf[2] = f.nextSeq()
	binary.LittleEndian.PutUint16(buf[3:5], NetworkID)
	putEUI(buf[5:13], dest)
	binary.LittleEndian.PutUint16(buf[13:15], src)
	return LongMACLen
}

func (f *Framer) nextSeq() byte {
	s := f.seq
	f.seq++
	return s
}

// DecodeKind classifies a received frame by its control bytes. ok is false
// when the first bytes match none of the three frame shapes or the frame is
// too short to carry its kind byte; such frames must be dropped.
func DecodeKind(frame []byte) (MessageKind, bool) {
	if len(frame) < 2 {
		return 0, false
	}
	switch {
	case frame[0] == FrameCtrlBlink:
		if len(frame) < BlinkLen {
			return 0, false
		}
		return KindBlink, true
	case frame[0] == FrameCtrl1 && frame[1] == FrameCtrl2Long:
		if len(frame) < LongMACLen+1 {
			return 0, false
		}
		return MessageKind(frame[LongMACLen]), true
	case frame[0] == FrameCtrl1 && frame[1] == FrameCtrl2Short:
		if len(frame) < ShortMACLen+1 {
			return 0, false
		}
		return MessageKind(frame[ShortMACLen]), true
	}
	return 0, false
}

// DecodeSource extracts the sender's short address from a frame of the given
// kind.
func DecodeSource(frame []byte, kind MessageKind) uint16 {
	switch kind {
	case KindBlink:
		return binary.LittleEndian.Uint16(frame[10:12])
	case KindRangingInit:
		return binary.LittleEndian.Uint16(frame[13:15])
	default:
		return binary.LittleEndian.Uint16(frame[7:9])
	}
}

// DecodeDest extracts the destination short address of a short-MAC frame.
func DecodeDest(frame []byte) uint16 {
	return binary.LittleEndian.Uint16(frame[5:7])
}

// DecodeBlink extracts the announced EUI and short address from a blink
// frame.
func DecodeBlink(frame []byte) (EUI, uint16) {
	return getEUI(frame[2:10]), binary.LittleEndian.Uint16(frame[10:12])
}
