package ranging

import (
	"encoding/binary"
	"math"

	"github.com/ystepanoff/dwranging/protocol"
)

// Per-peer record layout inside broadcast POLL and RANGE payloads, after the
// count byte.
const (
	pollRecordLen         = 4  // short(2) replyDelayUS(2)
	rangeRecordLen        = 17 // short(2) tPollSent(5) tPollAckReceived(5) tRangeSent(5)
	rangeRecordPayloadLen = rangeRecordLen + 8
)

// anchorHandle runs the anchor-side state machine for one queued frame.
//
// A kind that does not match the peer's expectation marks the exchange
// failed and surfaces the kind through the protocol-error callback. A POLL
// still restarts the exchange afterwards (that is the documented recovery
// path); anything else parks the peer in FAILED until the next POLL.
func (e *Engine) anchorHandle(peer *protocol.Peer, frame []byte, item *queueItem, now int64) {
	if item.kind != peer.Expected() {
		peer.SetProtocolFailed(true)
		e.fireProtocolError(peer, int(item.kind))
		if item.kind != protocol.KindPoll {
			peer.SetState(protocol.PeerFailed)
			return
		}
	}

	switch item.kind {
	case protocol.KindPoll:
		e.anchorPoll(peer, frame, item, now)
	case protocol.KindRange:
		e.anchorRange(peer, frame, item, now)
	default:
		log().Debug("anchor ignoring frame", "kind", item.kind.String())
	}
}

// anchorPoll answers a broadcast poll. The record matching our own short
// address carries the reply delay this anchor must use, so several anchors
// answer the same poll without colliding.
func (e *Engine) anchorPoll(peer *protocol.Peer, frame []byte, item *queueItem, now int64) {
	base := protocol.ShortMACLen + 2
	if len(frame) < base {
		return
	}
	count := int(frame[protocol.ShortMACLen+1])
	if len(frame) < base+count*pollRecordLen {
		return
	}

	for i := 0; i < count; i++ {
		rec := frame[base+i*pollRecordLen:]
		if binary.LittleEndian.Uint16(rec) != e.shortAddr {
			continue
		}
		e.replyDelayUS = binary.LittleEndian.Uint16(rec[2:])

		// A poll (re-)starts the exchange, clearing any earlier failure.
		peer.SetProtocolFailed(false)
		peer.SetState(protocol.PeerPollSent)
		peer.TimePollReceived = item.rxTime
		peer.NoteActivity(now)
		peer.NoteProtocolActivity(now)
		peer.SetExpected(protocol.KindRange)

		e.transmitPollAck(peer)
		e.noteActivity(now)
		return
	}
}

// anchorRange finishes the exchange: it digs this anchor's timestamp triplet
// out of the broadcast range message, computes the time of flight and
// reports the distance back to the tag.
func (e *Engine) anchorRange(peer *protocol.Peer, frame []byte, item *queueItem, now int64) {
	base := protocol.ShortMACLen + 2
	if len(frame) < base {
		return
	}
	count := int(frame[protocol.ShortMACLen+1])

	stride := rangeRecordLen
	if count > 0 && len(frame)-base >= count*rangeRecordPayloadLen {
		stride = rangeRecordPayloadLen
	}
	if len(frame) < base+count*stride {
		return
	}

	for i := 0; i < count; i++ {
		rec := frame[base+i*stride:]
		if binary.LittleEndian.Uint16(rec) != e.shortAddr {
			continue
		}

		peer.TimeRangeReceived = item.rxTime
		peer.NoteActivity(now)
		peer.NoteProtocolActivity(now)
		peer.SetExpected(protocol.KindPoll)
		peer.SetState(protocol.PeerRangeSent)
		e.noteActivity(now)

		if peer.ProtocolFailed() {
			e.transmitRangeFailed(peer)
			peer.SetState(protocol.PeerFailed)
			return
		}

		peer.TimePollSent = protocol.TimestampFromBytes(rec[2:7])
		peer.TimePollAckReceived = protocol.TimestampFromBytes(rec[7:12])
		peer.TimeRangeSent = protocol.TimestampFromBytes(rec[12:17])
		if stride == rangeRecordPayloadLen {
			e.rxRangePayload = rxPayload{
				ok:        true,
				dataType:  binary.LittleEndian.Uint32(rec[17:21]),
				dataValue: binary.LittleEndian.Uint32(rec[21:25]),
			}
		}

		tof, err := computeRangeAsymmetric(peer)
		if err != nil {
			log().Warn("ranging arithmetic invalid", "peer", peer.ShortAddress())
			e.transmitRangeFailed(peer)
			peer.SetState(protocol.PeerFailed)
			return
		}

		distance := float32(tof.Meters())
		if e.useFilter && peer.Range() != 0 {
			distance = emaFilter(distance, peer.Range(), e.filterWindow)
		}

		peer.SetRXPower(e.driver.LastRXPower())
		peer.SetRange(distance)
		peer.SetFPPower(e.driver.LastFirstPathPower())
		peer.SetQuality(e.driver.LastReceiveQuality())

		e.transmitRangeReport(peer)
		peer.SetState(protocol.PeerRangeReportSent)
		e.fireRangeDone(peer)
		return
	}
}

// computeRangeAsymmetric is the asymmetric two-way ranging formula. The two
// round/reply pairs cancel the oscillator offset between the devices; every
// difference is taken modulo 2^40 so counter roll-over between causally
// ordered timestamps does not corrupt the result.
func computeRangeAsymmetric(peer *protocol.Peer) (protocol.Timestamp, error) {
	round1 := peer.TimePollAckReceived.Sub(peer.TimePollSent)
	reply1 := peer.TimePollAckSent.Sub(peer.TimePollReceived)
	round2 := peer.TimeRangeReceived.Sub(peer.TimePollAckSent)
	reply2 := peer.TimeRangeSent.Sub(peer.TimePollAckReceived)

	denom := round1 + round2 + reply1 + reply2
	if denom == 0 {
		return 0, protocol.ErrRangingMath
	}
	tof := (round1*round2 - reply1*reply2) / denom
	if tof < 0 {
		return 0, protocol.ErrRangingMath
	}
	return tof, nil
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
