// Package dwranging provides a façade to access the UWB two-way ranging
// engine. The implementation is split into:
//   - protocol/ — timestamps, MAC framing, peer records, wire constants
//   - ranging/  — the per-peer protocol engine over a Driver interface
//   - driver/   — transceiver backends (dw1000 SPI, serialdw bridge, stub)
package dwranging

import (
	"github.com/ystepanoff/dwranging/protocol"
	"github.com/ystepanoff/dwranging/ranging"
)

// Re-export the types a host application works with.
type (
	Engine      = ranging.Engine
	Driver      = ranging.Driver
	Option      = ranging.Option
	Role        = ranging.Role
	Peer        = protocol.Peer
	PeerState   = protocol.PeerState
	EUI         = protocol.EUI
	MessageKind = protocol.MessageKind
	Mode        = protocol.Mode
	Timestamp   = protocol.Timestamp
)

// Constants exposed in the public API.
const (
	RoleTag    = ranging.RoleTag
	RoleAnchor = ranging.RoleAnchor

	KindPoll        = protocol.KindPoll
	KindPollAck     = protocol.KindPollAck
	KindRange       = protocol.KindRange
	KindRangeReport = protocol.KindRangeReport
	KindBlink       = protocol.KindBlink
	KindRangingInit = protocol.KindRangingInit
	KindRangeFailed = protocol.KindRangeFailed

	ErrCodeTimeout   = ranging.ErrCodeTimeout
	ErrCodeQueueFull = ranging.ErrCodeQueueFull
	ErrCodeTableFull = ranging.ErrCodeTableFull
)

// SetLogger replaces the engine's slog logger.
var SetLogger = ranging.SetLogger

// Standard radio modes.
var (
	ModeLongDataRangeLowPower = protocol.ModeLongDataRangeLowPower
	ModeLongDataRangeAccuracy = protocol.ModeLongDataRangeAccuracy
	ModeShortDataFastLowPower = protocol.ModeShortDataFastLowPower
	ModeLongDataFastLowPower  = protocol.ModeLongDataFastLowPower
	ModeShortDataFastAccuracy = protocol.ModeShortDataFastAccuracy
	ModeLongDataFastAccuracy  = protocol.ModeLongDataFastAccuracy
)
