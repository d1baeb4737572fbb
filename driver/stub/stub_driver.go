// Package stub implements a simulated UWB transceiver for host-side testing.
// Tests control device time explicitly, inject received frames with chosen
// RX timestamps, and read back everything the engine transmitted.
package stub

import (
	"sync"
	"time"

	"github.com/ystepanoff/dwranging/protocol"
	"github.com/ystepanoff/dwranging/ranging"
)

// Driver implements ranging.Driver against an in-memory radio.
type Driver struct {
	mu sync.Mutex

	clock      protocol.Timestamp // current device time, 40-bit ticks
	pendingTX  protocol.Timestamp // scheduled departure of the next Transmit
	hasPending bool

	txLog [][]byte

	onSent     func(protocol.Timestamp)
	onReceived func([]byte, protocol.Timestamp)

	rxPower float32
	fpPower float32
	quality float32

	eui       protocol.EUI
	address   uint16
	networkID uint16
	mode      protocol.Mode
	receiving bool
}

func New() *Driver {
	return &Driver{rxPower: -80, fpPower: -82, quality: 10}
}

func (d *Driver) Configure(deviceAddress uint16, networkID uint16, mode protocol.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.address = deviceAddress
	d.networkID = networkID
	d.mode = mode
	return nil
}

func (d *Driver) SetEUI(eui protocol.EUI) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eui = eui
	return nil
}

func (d *Driver) StartReceive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receiving = true
	return nil
}

func (d *Driver) SetDelay(delay time.Duration) (protocol.Timestamp, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingTX = d.clock.Add(protocol.TimestampFromDuration(delay))
	d.hasPending = true
	return d.pendingTX, nil
}

// Transmit records the frame and reports completion immediately, stamped
// with the scheduled departure time of a preceding SetDelay (or the current
// device time without one). The sent callback runs on the caller's
// goroutine, standing in for the radio's interrupt context.
func (d *Driver) Transmit(frame []byte) error {
	d.mu.Lock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	d.txLog = append(d.txLog, cp)

	txTime := d.clock
	if d.hasPending {
		txTime = d.pendingTX
		d.hasPending = false
	}
	sent := d.onSent
	d.mu.Unlock()

	if sent != nil {
		sent(txTime)
	}
	return nil
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

func (d *Driver) LastRXPower() float32        { return d.rxPower }
func (d *Driver) LastFirstPathPower() float32 { return d.fpPower }
func (d *Driver) LastReceiveQuality() float32 { return d.quality }

// --- test helpers -----------------------------------------------------------

// SetClock pins the device time used for subsequent SetDelay calls and
// un-timestamped transmissions.
func (d *Driver) SetClock(ts protocol.Timestamp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = ts.Wrap()
}

// InjectFrame delivers a frame as if received off the air at rxTime.
func (d *Driver) InjectFrame(frame []byte, rxTime protocol.Timestamp) {
	d.mu.Lock()
	recv := d.onReceived
	d.clock = rxTime.Wrap()
	d.mu.Unlock()

	if recv != nil {
		recv(frame, rxTime.Wrap())
	}
}

// SetSignal sets the values returned by the power/quality readbacks.
func (d *Driver) SetSignal(rxPower, fpPower, quality float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rxPower = rxPower
	d.fpPower = fpPower
	d.quality = quality
}

// TxLog returns a copy of everything transmitted so far.
func (d *Driver) TxLog() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.txLog))
	for i, f := range d.txLog {
		cp := make([]byte, len(f))
		copy(cp, f)
		out[i] = cp
	}
	return out
}

// LastTx returns the most recent transmission, or nil.
func (d *Driver) LastTx() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.txLog) == 0 {
		return nil
	}
	f := d.txLog[len(d.txLog)-1]
	cp := make([]byte, len(f))
	copy(cp, f)
	return cp
}

func (d *Driver) ClearTxLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txLog = d.txLog[:0]
}

// Receiving reports whether StartReceive has armed the receiver.
func (d *Driver) Receiving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receiving
}

var _ ranging.Driver = (*Driver)(nil)
