package ranging

import (
	"time"

	"github.com/ystepanoff/dwranging/protocol"
)

// Driver is the interface that wraps the transceiver operations the engine
// needs. Implementations live under driver/; driver/stub is a host-side
// simulator for tests.
//
// OnSent and OnReceived handlers are invoked from the driver's own context
// (an interrupt service routine or a goroutine watching the IRQ line) and
// must not block.
//
// SetDelay schedules the next Transmit to leave the antenna at now+delay and
// returns that future device-time timestamp. The split exists because the
// broadcast RANGE frame embeds its own departure time, which therefore has
// to be known before the frame is handed over.
type Driver interface {
	Configure(deviceAddress uint16, networkID uint16, mode protocol.Mode) error
	SetEUI(eui protocol.EUI) error

	// StartReceive arms the receiver in receive-permanent mode: after every
	// frame (and every transmission) the radio drops back to listening
	// without engine involvement.
	StartReceive() error

	SetDelay(delay time.Duration) (protocol.Timestamp, error)
	Transmit(frame []byte) error

	OnSent(fn func(txTime protocol.Timestamp))
	OnReceived(fn func(frame []byte, rxTime protocol.Timestamp))

	// Signal quality readbacks for the most recent reception.
	LastRXPower() float32
	LastFirstPathPower() float32
	LastReceiveQuality() float32
}
