// Package serialdw drives a DW1000 module that sits behind a UART bridge
// MCU, for hosts without an SPI bus to the transceiver. The bridge firmware
// forwards frames to and from the radio and reports TX/RX device timestamps
// and signal diagnostics with each one.
//
// Messages on the wire are byte-stuffed: a literal 0xDB travels as 0xDB 0xDC
// and 0xDB 0xDD terminates a message.
package serialdw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/ystepanoff/dwranging/protocol"
	"github.com/ystepanoff/dwranging/ranging"
)

// Bridge message opcodes, host to MCU.
const (
	cmdConfig   = 0x00
	cmdSetEUI   = 0x01
	cmdStartRX  = 0x02
	cmdTx       = 0x03
	cmdSetDelay = 0x04
)

// MCU to host.
const (
	evtDelay = 0x80
	evtSent  = 0x81
	evtRecv  = 0x82
)

const (
	escByte  = 0xDB
	escLit   = 0xDC
	escTerm  = 0xDD
	delayRTT = 100 * time.Millisecond
)

// Driver implements ranging.Driver over a serial port.
type Driver struct {
	mu   sync.Mutex
	port *serial.Port
	rd   *bufio.Reader

	onSent     func(protocol.Timestamp)
	onReceived func([]byte, protocol.Timestamp)

	delayCh chan protocol.Timestamp

	rxPower float32
	fpPower float32
	quality float32

	closed chan struct{}
}

// Open connects to the bridge at the given serial device, e.g.
// "/dev/ttyUSB0".
func Open(device string, baud int) (*Driver, error) {
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	d := &Driver{
		port:    port,
		rd:      bufio.NewReader(port),
		delayCh: make(chan protocol.Timestamp, 1),
		closed:  make(chan struct{}),
	}
	go d.readLoop()
	return d, nil
}

// Close stops the reader and releases the port.
func (d *Driver) Close() error {
	close(d.closed)
	return d.port.Close()
}

// --- wire framing -----------------------------------------------------------

func (d *Driver) writeMsg(msg []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, 0, len(msg)+8)
	for _, b := range msg {
		if b == escByte {
			out = append(out, escByte, escLit)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, escByte, escTerm)
	if _, err := d.port.Write(out); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// readMsg reads and unescapes one bridge message.
func (d *Driver) readMsg() ([]byte, error) {
	var msg []byte
	for {
		b, err := d.rd.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != escByte {
			msg = append(msg, b)
			continue
		}
		b, err = d.rd.ReadByte()
		if err != nil {
			return nil, err
		}
		switch b {
		case escLit:
			msg = append(msg, escByte)
		case escTerm:
			return msg, nil
		default:
			// Corrupt escape; drop what we have and resynchronise.
			msg = msg[:0]
		}
	}
}

func (d *Driver) readLoop() {
	for {
		select {
		case <-d.closed:
			return
		default:
		}
		msg, err := d.readMsg()
		if err != nil {
			return
		}
		if len(msg) == 0 {
			continue
		}
		d.handleMsg(msg)
	}
}

func (d *Driver) handleMsg(msg []byte) {
	switch msg[0] {
	case evtDelay:
		if len(msg) < 1+protocol.TimestampBytes {
			return
		}
		ts := protocol.TimestampFromBytes(msg[1:])
		select {
		case d.delayCh <- ts:
		default:
		}
	case evtSent:
		if len(msg) < 1+protocol.TimestampBytes {
			return
		}
		d.mu.Lock()
		sent := d.onSent
		d.mu.Unlock()
		if sent != nil {
			sent(protocol.TimestampFromBytes(msg[1:]))
		}
	case evtRecv:
		// ts(5) rxPower(4) fpPower(4) quality(4) frame(...)
		if len(msg) < 1+protocol.TimestampBytes+12 {
			return
		}
		ts := protocol.TimestampFromBytes(msg[1:])
		off := 1 + protocol.TimestampBytes
		d.mu.Lock()
		d.rxPower = math.Float32frombits(binary.LittleEndian.Uint32(msg[off:]))
		d.fpPower = math.Float32frombits(binary.LittleEndian.Uint32(msg[off+4:]))
		d.quality = math.Float32frombits(binary.LittleEndian.Uint32(msg[off+8:]))
		recv := d.onReceived
		d.mu.Unlock()
		if recv != nil {
			recv(msg[off+12:], ts)
		}
	}
}

// --- ranging.Driver ---------------------------------------------------------

func (d *Driver) Configure(deviceAddress uint16, networkID uint16, mode protocol.Mode) error {
	msg := make([]byte, 8)
	msg[0] = cmdConfig
	binary.LittleEndian.PutUint16(msg[1:], deviceAddress)
	binary.LittleEndian.PutUint16(msg[3:], networkID)
	copy(msg[5:], mode[:])
	return d.writeMsg(msg)
}

func (d *Driver) SetEUI(eui protocol.EUI) error {
	msg := make([]byte, 9)
	msg[0] = cmdSetEUI
	copy(msg[1:], eui[:])
	return d.writeMsg(msg)
}

func (d *Driver) StartReceive() error {
	return d.writeMsg([]byte{cmdStartRX})
}

// SetDelay asks the bridge to schedule the next transmission and waits for
// the scheduled device time it picked.
func (d *Driver) SetDelay(delay time.Duration) (protocol.Timestamp, error) {
	msg := make([]byte, 5)
	msg[0] = cmdSetDelay
	binary.LittleEndian.PutUint32(msg[1:], uint32(delay.Microseconds()))
	if err := d.writeMsg(msg); err != nil {
		return 0, err
	}
	select {
	case ts := <-d.delayCh:
		return ts, nil
	case <-time.After(delayRTT):
		return 0, fmt.Errorf("bridge did not confirm delayed transmit")
	}
}

func (d *Driver) Transmit(frame []byte) error {
	msg := make([]byte, 1+len(frame))
	msg[0] = cmdTx
	copy(msg[1:], frame)
	return d.writeMsg(msg)
}

func (d *Driver) OnSent(fn func(protocol.Timestamp)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSent = fn
}

func (d *Driver) OnReceived(fn func([]byte, protocol.Timestamp)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onReceived = fn
}

func (d *Driver) LastRXPower() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rxPower
}

func (d *Driver) LastFirstPathPower() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fpPower
}

func (d *Driver) LastReceiveQuality() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quality
}

var _ ranging.Driver = (*Driver)(nil)
