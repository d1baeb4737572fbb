package ranging

import (
	"encoding/binary"

	"github.com/ystepanoff/dwranging/protocol"
)

// tagHandle runs the tag-side state machine for one queued frame.
//
// Anything other than the expected kind (including RANGE_FAILED from an
// anchor whose arithmetic went bad) marks the exchange failed; the peer
// recovers on the next poll cycle.
func (e *Engine) tagHandle(peer *protocol.Peer, frame []byte, item *queueItem, now int64) {
	if item.kind != peer.Expected() {
		peer.SetProtocolFailed(true)
		peer.SetState(protocol.PeerFailed)
		peer.SetExpected(protocol.KindPollAck)
		e.fireProtocolError(peer, int(item.kind))
		return
	}

	switch item.kind {
	case protocol.KindPollAck:
		e.tagPollAck(peer, item, now)
	case protocol.KindRangeReport:
		e.tagRangeReport(peer, frame, now)
	default:
		log().Debug("tag ignoring frame", "kind", item.kind.String())
	}
}

// tagPollAck records one anchor's acknowledgement. Once every peer in the
// table has answered this cycle's poll — the staggered reply delays make
// that normally, but not necessarily, the last-indexed one — the collected
// timestamps go out in a single broadcast range message.
func (e *Engine) tagPollAck(peer *protocol.Peer, item *queueItem, now int64) {
	peer.TimePollAckReceived = item.rxTime
	peer.NoteActivity(now)
	peer.NoteProtocolActivity(now)
	peer.SetState(protocol.PeerPollAckSent)
	e.noteActivity(now)

	for i := 0; i < e.peers.count(); i++ {
		if e.peers.at(i).State() != protocol.PeerPollAckSent {
			return
		}
	}
	for i := 0; i < e.peers.count(); i++ {
		e.peers.at(i).SetExpected(protocol.KindRangeReport)
	}
	e.transmitRange()
}

// tagRangeReport stores the distance the anchor computed and closes the
// exchange for this peer.
func (e *Engine) tagRangeReport(peer *protocol.Peer, frame []byte, now int64) {
	base := protocol.ShortMACLen + 1
	if len(frame) < base+8 {
		return
	}

	rangeM := getFloat32(frame[base:])
	rxPower := getFloat32(frame[base+4:])
	if len(frame) >= base+16 {
		e.rxRangeReportPayload = rxPayload{
			ok:        true,
			dataType:  binary.LittleEndian.Uint32(frame[base+8:]),
			dataValue: binary.LittleEndian.Uint32(frame[base+12:]),
		}
	}

	if e.useFilter && peer.Range() != 0 {
		rangeM = emaFilter(rangeM, peer.Range(), e.filterWindow)
	}

	peer.SetRange(rangeM)
	peer.SetRXPower(rxPower)
	peer.NoteActivity(now)
	peer.NoteProtocolActivity(now)
	peer.SetState(protocol.PeerIdle)
	peer.SetExpected(protocol.KindPollAck)
	e.noteActivity(now)

	e.fireRangeDone(peer)
}
