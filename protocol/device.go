package protocol

import "sync/atomic"

// PeerState is a peer's position in the per-peer ranging state machine.
type PeerState uint8

const (
	PeerIdle PeerState = iota
	PeerPollSent
	PeerPollAckSent
	PeerRangeSent
	PeerRangeReportSent
	PeerFailed
)

func (s PeerState) String() string {
	switch s {
	case PeerIdle:
		return "IDLE"
	case PeerPollSent:
		return "POLL_SENT"
	case PeerPollAckSent:
		return "POLL_ACK_SENT"
	case PeerRangeSent:
		return "RANGE_SENT"
	case PeerRangeReportSent:
		return "RANGE_REPORT_SENT"
	case PeerFailed:
		return "FAILED"
	}
	return "INVALID"
}

// Peer is one remote device discovered over the air: a Tag from the anchor's
// point of view, an Anchor from the tag's. All protocol state is kept here,
// per peer, so that several exchanges can be mid-flight at once.
//
// Only the engine's service context mutates a Peer. TX-completion
// timestamps travel from the radio context through the engine's rings and
// are written onto the peer inside ServiceOnce. The ack flags are atomics.
type Peer struct {
	eui   EUI
	short uint16
	index int

	// Exchange timestamps in device time. Which side records which field is
	// described in the engine; unused fields stay at their previous value
	// until the next exchange overwrites them.
	TimePollSent        Timestamp
	TimePollReceived    Timestamp
	TimePollAckSent     Timestamp
	TimePollAckReceived Timestamp
	TimeRangeSent       Timestamp
	TimeRangeReceived   Timestamp

	replyDelayUS uint16

	state          PeerState
	expected       MessageKind
	protocolFailed bool

	lastSeenMS     int64
	lastProtocolMS int64

	sentAck     atomic.Bool
	receivedAck atomic.Bool

	rangeM  float32
	rxPower float32
	fpPower float32
	quality float32
}

// NewPeer builds a peer record for a device seen at nowMS.
func NewPeer(eui EUI, short uint16, nowMS int64) *Peer {
	p := &Peer{
		eui:          eui,
		short:        short,
		replyDelayUS: DefaultReplyDelayUS,
	}
	p.ResetProtocolState(nowMS)
	p.lastSeenMS = nowMS
	return p
}

func (p *Peer) EUI() EUI             { return p.eui }
func (p *Peer) ShortAddress() uint16 { return p.short }

func (p *Peer) Index() int         { return p.index }
func (p *Peer) SetIndex(index int) { p.index = index }

func (p *Peer) ReplyDelayUS() uint16      { return p.replyDelayUS }
func (p *Peer) SetReplyDelayUS(us uint16) { p.replyDelayUS = us }

func (p *Peer) Range() float32         { return p.rangeM }
func (p *Peer) SetRange(m float32)     { p.rangeM = m }
func (p *Peer) RXPower() float32       { return p.rxPower }
func (p *Peer) SetRXPower(dbm float32) { p.rxPower = dbm }
func (p *Peer) FPPower() float32       { return p.fpPower }
func (p *Peer) SetFPPower(dbm float32) { p.fpPower = dbm }
func (p *Peer) Quality() float32       { return p.quality }
func (p *Peer) SetQuality(q float32)   { p.quality = q }

func (p *Peer) State() PeerState          { return p.state }
func (p *Peer) SetState(s PeerState)      { p.state = s }
func (p *Peer) Expected() MessageKind     { return p.expected }
func (p *Peer) SetExpected(k MessageKind) { p.expected = k }

func (p *Peer) ProtocolFailed() bool     { return p.protocolFailed }
func (p *Peer) SetProtocolFailed(f bool) { p.protocolFailed = f }

func (p *Peer) SentAck() bool         { return p.sentAck.Load() }
func (p *Peer) SetSentAck(v bool)     { p.sentAck.Store(v) }
func (p *Peer) ReceivedAck() bool     { return p.receivedAck.Load() }
func (p *Peer) SetReceivedAck(v bool) { p.receivedAck.Store(v) }

// NoteActivity refreshes the inactivity deadline.
func (p *Peer) NoteActivity(nowMS int64) { p.lastSeenMS = nowMS }

// IsInactive reports whether the peer has been silent past the eviction
// threshold.
func (p *Peer) IsInactive(nowMS int64) bool {
	return nowMS-p.lastSeenMS > InactivityMS
}

// NoteProtocolActivity refreshes the per-exchange watchdog. The value is
// monotone non-decreasing.
func (p *Peer) NoteProtocolActivity(nowMS int64) {
	if nowMS > p.lastProtocolMS {
		p.lastProtocolMS = nowMS
	}
}

// IsProtocolTimedOut reports whether the current exchange has stalled past
// timeoutMS.
func (p *Peer) IsProtocolTimedOut(nowMS, timeoutMS int64) bool {
	return nowMS-p.lastProtocolMS > timeoutMS
}

// IsProtocolActive reports whether this peer is mid-exchange.
func (p *Peer) IsProtocolActive() bool {
	return p.state != PeerIdle && p.state != PeerFailed
}

// ResetProtocolState returns the peer to IDLE with a clean slate: the
// failure flag and both ack flags are cleared and the watchdog is set to
// nowMS. Resetting twice gives the same result as resetting once.
func (p *Peer) ResetProtocolState(nowMS int64) {
	p.state = PeerIdle
	p.protocolFailed = false
	p.sentAck.Store(false)
	p.receivedAck.Store(false)
	p.lastProtocolMS = nowMS
}
