package ranging

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ystepanoff/dwranging/protocol"
)

// Role of a device for its whole lifetime after start-up.
type Role uint8

const (
	RoleTag Role = iota
	RoleAnchor
)

func (r Role) String() string {
	if r == RoleAnchor {
		return "anchor"
	}
	return "tag"
}

// Protocol error codes surfaced through the protocol-error callback when the
// error has no message kind to report. Non-negative codes are the offending
// MessageKind.
const (
	ErrCodeTimeout   = -1
	ErrCodeQueueFull = -2
	ErrCodeTableFull = -3
)

// Number of queued frames handled per service call, to bound the time spent
// in one call.
const maxDrainPerService = 4

// The tag's blink counter wraps here, so discovery blinks keep going out
// every so often while ranging runs.
const blinkCounterWrap = 20

type payloadExt struct {
	set       bool
	dataType  uint32
	dataValue uint32
}

type rxPayload struct {
	ok        bool
	dataType  uint32
	dataValue uint32
}

// txDesc identifies an outgoing frame: its kind and last-sent-to destination
// short address. A broadcast destination means the TX timestamp fans out to
// every peer.
type txDesc struct {
	kind protocol.MessageKind
	dest uint16
}

type txEvent struct {
	txDesc
	txTime protocol.Timestamp
}

// Engine is the per-peer ranging protocol engine. One Engine owns one radio;
// construct it with New, start it as a tag or an anchor, then call
// ServiceOnce at millisecond cadence from the host loop.
//
// The engine is strictly non-blocking. Frames arrive through the driver's
// receive callback, which only enqueues them; TX completions likewise pass
// through a ring; all protocol work happens inside ServiceOnce.
type Engine struct {
	driver Driver
	mu     sync.Mutex

	role      Role
	eui       protocol.EUI
	shortAddr uint16
	started   bool

	framer protocol.Framer
	peers  peerTable
	queue  intakeQueue

	// txPending carries frame descriptors from the transmit path to the
	// driver's sent callback; txDone carries completions with their device
	// timestamps back to the service context.
	txPending spscRing[txDesc]
	txDone    spscRing[txEvent]

	buf [protocol.FrameBufLen]byte

	now func() int64

	replyDelayUS  uint16
	resetPeriodMS int64
	timerDelayMS  int64

	lastActivityMS int64
	lastTickMS     int64
	blinkCounter   int
	lastPeerIndex  int

	useFilter    bool
	filterWindow uint16

	rangePayload         payloadExt
	rangeReportPayload   payloadExt
	rxRangePayload       rxPayload
	rxRangeReportPayload rxPayload

	decodeErrors atomic.Uint32

	successCount  int
	countPeriodMS int64
	ratePerSec    int

	handleNewRange      func()
	handleBlinkPeer     func(*protocol.Peer)
	handleNewPeer       func(*protocol.Peer)
	handleInactivePeer  func(*protocol.Peer)
	handleRangeComplete func(*protocol.Peer)
	handleProtocolError func(*protocol.Peer, int)
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithClock replaces the millisecond monotonic clock, mainly for tests.
func WithClock(now func() int64) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine over the given driver. Callbacks should be attached
// before StartAsTag/StartAsAnchor.
func New(driver Driver, opts ...Option) *Engine {
	e := &Engine{
		driver:        driver,
		now:           func() int64 { return time.Now().UnixMilli() },
		replyDelayUS:  protocol.DefaultReplyDelayUS,
		resetPeriodMS: protocol.DefaultResetMS,
		timerDelayMS:  protocol.DefaultTimerMS,
		filterWindow:  protocol.DefaultRangeFilterWindow,
		lastPeerIndex: -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartAsTag brings the device up as a mobile tag: it blinks for discovery
// and initiates ranging with every anchor it learns about.
func (e *Engine) StartAsTag(eui string, mode protocol.Mode, randomShort bool) error {
	return e.start(RoleTag, eui, mode, randomShort)
}

// StartAsAnchor brings the device up as a fixed anchor: receive-permanent,
// answering blinks and polls.
func (e *Engine) StartAsAnchor(eui string, mode protocol.Mode, randomShort bool) error {
	return e.start(RoleAnchor, eui, mode, randomShort)
}

func (e *Engine) start(role Role, eui string, mode protocol.Mode, randomShort bool) error {
	parsed, err := protocol.ParseEUI(eui)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.role = role
	e.eui = parsed
	if randomShort {
		e.shortAddr = protocol.RandomShortAddress()
	} else {
		e.shortAddr = parsed.ShortAddress()
	}

	if err := e.driver.SetEUI(parsed); err != nil {
		return fmt.Errorf("set EUI: %w", err)
	}
	if err := e.driver.Configure(e.shortAddr, protocol.NetworkID, mode); err != nil {
		return fmt.Errorf("configure radio: %w", err)
	}
	e.driver.OnSent(e.handleSent)
	e.driver.OnReceived(e.handleReceived)
	if err := e.driver.StartReceive(); err != nil {
		return fmt.Errorf("start receive: %w", err)
	}

	now := e.now()
	e.lastActivityMS = now
	e.lastTickMS = now
	e.countPeriodMS = now
	e.started = true

	log().Info("ranging engine started",
		"role", role.String(), "eui", parsed.String(),
		"short", fmt.Sprintf("%04X", e.shortAddr))
	return nil
}

// Callback registration. All handlers run inside ServiceOnce (never from the
// radio context, except the queue-overflow error) and must not block.

func (e *Engine) OnNewRange(fn func())                         { e.handleNewRange = fn }
func (e *Engine) OnBlinkPeer(fn func(*protocol.Peer))          { e.handleBlinkPeer = fn }
func (e *Engine) OnNewPeer(fn func(*protocol.Peer))            { e.handleNewPeer = fn }
func (e *Engine) OnInactivePeer(fn func(*protocol.Peer))       { e.handleInactivePeer = fn }
func (e *Engine) OnRangeComplete(fn func(*protocol.Peer))      { e.handleRangeComplete = fn }
func (e *Engine) OnProtocolError(fn func(*protocol.Peer, int)) { e.handleProtocolError = fn }

// Tuning.

func (e *Engine) SetReplyDelay(us uint16) { e.replyDelayUS = us }
func (e *Engine) SetResetPeriod(ms int64) { e.resetPeriodMS = ms }
func (e *Engine) UseRangeFilter(on bool)  { e.useFilter = on }

// SetRangeFilterValue sets the EMA window; values below 2 are clamped to 2.
func (e *Engine) SetRangeFilterValue(n uint16) {
	if n < 2 {
		n = 2
	}
	e.filterWindow = n
}

// SetRangePayload arms the optional {dataType, dataValue} trailing field on
// outgoing RANGE records (tag side).
func (e *Engine) SetRangePayload(dataType, dataValue uint32) {
	e.rangePayload = payloadExt{set: true, dataType: dataType, dataValue: dataValue}
}

// SetRangeReportPayload arms the trailing field on outgoing RANGE_REPORT
// frames (anchor side).
func (e *Engine) SetRangeReportPayload(dataType, dataValue uint32) {
	e.rangeReportPayload = payloadExt{set: true, dataType: dataType, dataValue: dataValue}
}

// GetRangePayload returns the payload of the most recent RANGE that carried
// one; a later RANGE without a payload leaves it unchanged.
func (e *Engine) GetRangePayload() (dataType, dataValue uint32, ok bool) {
	p := e.rxRangePayload
	return p.dataType, p.dataValue, p.ok
}

// GetRangeReportPayload returns the payload of the most recent RANGE_REPORT
// that carried one; a later report without a payload leaves it unchanged.
func (e *Engine) GetRangeReportPayload() (dataType, dataValue uint32, ok bool) {
	p := e.rxRangeReportPayload
	return p.dataType, p.dataValue, p.ok
}

// Queries.

func (e *Engine) Role() Role           { return e.role }
func (e *Engine) EUI() protocol.EUI    { return e.eui }
func (e *Engine) ShortAddress() uint16 { return e.shortAddr }

func (e *Engine) PeerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peers.count()
}

func (e *Engine) FindPeer(short uint16) *protocol.Peer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peers.find(short)
}

// LastPeer returns the peer of the most recently completed exchange.
func (e *Engine) LastPeer() *protocol.Peer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastPeerIndex < 0 || e.lastPeerIndex >= e.peers.count() {
		return nil
	}
	return e.peers.at(e.lastPeerIndex)
}

// RemovePeer drops the peer at the given table index, compacting the table.
func (e *Engine) RemovePeer(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= e.peers.count() {
		return
	}
	e.peers.removeAt(index)
	if e.lastPeerIndex == index {
		e.lastPeerIndex = -1
	} else if e.lastPeerIndex > index {
		e.lastPeerIndex--
	}
}

// RangesPerSecond returns the completed-exchange count of the last full
// one-second window.
func (e *Engine) RangesPerSecond() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ratePerSec
}

// FrameDecodeErrors returns how many received frames matched no known frame
// shape and were dropped.
func (e *Engine) FrameDecodeErrors() uint32 {
	return e.decodeErrors.Load()
}

// ServiceOnce runs one cooperative slice of the engine: TX completions,
// transceiver reset watchdog, scheduler tick, a bounded drain of the intake
// queue, per-peer protocol timeouts, and inactive-peer pruning. The host
// must call it frequently (millisecond cadence); it never blocks.
func (e *Engine) ServiceOnce() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}

	now := e.now()

	for {
		ev, ok := e.txDone.pop()
		if !ok {
			break
		}
		e.applySent(ev)
	}

	e.checkForReset(now)

	if now-e.lastTickMS > e.timerDelayMS {
		e.lastTickMS = now
		e.timerTick(now)
	}

	for i := 0; i < maxDrainPerService; i++ {
		item, ok := e.queue.dequeue()
		if !ok {
			break
		}
		e.dispatch(&item, now)
	}

	e.checkTimeouts(now)
	e.pruneInactive(now)

	if now-e.countPeriodMS >= 1000 {
		e.ratePerSec = e.successCount
		e.successCount = 0
		e.countPeriodMS = now
	}
}

// --- radio-context handlers -------------------------------------------------

// handleReceived runs in the driver's context. It classifies the frame and
// queues it; everything else waits for the service context.
func (e *Engine) handleReceived(frame []byte, rxTime protocol.Timestamp) {
	kind, ok := protocol.DecodeKind(frame)
	if !ok {
		e.decodeErrors.Add(1)
		return
	}
	if !e.acceptDest(frame, kind) {
		return
	}
	src := protocol.DecodeSource(frame, kind)
	if !e.queue.enqueue(frame, src, kind, rxTime, e.now()) {
		log().Warn("intake queue full, frame dropped",
			"kind", kind.String(), "src", fmt.Sprintf("%04X", src))
		e.fireProtocolError(nil, ErrCodeQueueFull)
	}
}

// acceptDest mirrors the transceiver's hardware frame filtering for drivers
// that deliver everything: unicast frames for somebody else are dropped.
func (e *Engine) acceptDest(frame []byte, kind protocol.MessageKind) bool {
	switch kind {
	case protocol.KindBlink:
		return true
	case protocol.KindRangingInit:
		var dest protocol.EUI
		for i := range dest {
			dest[i] = frame[12-i]
		}
		return dest == e.eui
	default:
		dest := protocol.DecodeDest(frame)
		return dest == e.shortAddr || dest == protocol.BroadcastShort
	}
}

// handleSent runs in the driver's context on TX completion. It pairs the
// departure timestamp with the frame descriptor pushed at transmit time and
// hands both to the service context.
func (e *Engine) handleSent(txTime protocol.Timestamp) {
	desc, ok := e.txPending.pop()
	if !ok {
		return
	}
	e.txDone.push(txEvent{txDesc: desc, txTime: txTime})
}

// applySent records a departure timestamp on the peer(s) a frame went to. A
// broadcast fans the timestamp out to every peer, not just one.
func (e *Engine) applySent(ev txEvent) {
	fan := func(apply func(*protocol.Peer)) {
		if ev.dest == protocol.BroadcastShort {
			for i := 0; i < e.peers.count(); i++ {
				apply(e.peers.at(i))
			}
		} else if p := e.peers.find(ev.dest); p != nil {
			apply(p)
		}
	}

	switch {
	case e.role == RoleAnchor && ev.kind == protocol.KindPollAck:
		fan(func(p *protocol.Peer) {
			p.TimePollAckSent = ev.txTime
			p.SetSentAck(true)
		})
	case e.role == RoleTag && ev.kind == protocol.KindPoll:
		fan(func(p *protocol.Peer) {
			p.TimePollSent = ev.txTime
			p.SetSentAck(true)
		})
	case e.role == RoleTag && ev.kind == protocol.KindRange:
		fan(func(p *protocol.Peer) {
			p.TimeRangeSent = ev.txTime
			p.SetSentAck(true)
		})
	}
}

// --- scheduler --------------------------------------------------------------

// checkForReset acts when nothing has happened for a while and no peer is
// mid-exchange: on an anchor it re-arms the receiver and resets every peer
// to expect a POLL; on a tag it only restarts the quiet period. It never
// fires during a valid exchange.
func (e *Engine) checkForReset(now int64) {
	if e.anyPeerActive() {
		return
	}
	if now-e.lastActivityMS <= e.resetPeriodMS {
		return
	}
	if e.role == RoleAnchor {
		for i := 0; i < e.peers.count(); i++ {
			e.peers.at(i).SetExpected(protocol.KindPoll)
		}
		if err := e.driver.StartReceive(); err != nil {
			log().Warn("receiver re-arm failed", "err", err)
		}
	}
	e.noteActivity(now)
}

func (e *Engine) anyPeerActive() bool {
	for i := 0; i < e.peers.count(); i++ {
		if e.peers.at(i).IsProtocolActive() {
			return true
		}
	}
	return false
}

// timerTick emits the tag's periodic traffic: a discovery blink while the
// table is empty (and every blinkCounterWrap+1 ticks after that), a
// broadcast poll otherwise. Anchors are receive-permanent and emit nothing
// here.
func (e *Engine) timerTick(now int64) {
	if e.role != RoleTag {
		return
	}
	if e.peers.count() == 0 || e.blinkCounter == 0 {
		e.transmitBlink()
	} else {
		// A fresh poll cycle: whatever a peer was left in last cycle, it
		// starts from IDLE awaiting its ack.
		for i := 0; i < e.peers.count(); i++ {
			p := e.peers.at(i)
			p.SetExpected(protocol.KindPollAck)
			p.SetState(protocol.PeerIdle)
		}
		e.transmitPoll()
	}
	e.blinkCounter++
	if e.blinkCounter > blinkCounterWrap {
		e.blinkCounter = 0
	}
}

func (e *Engine) checkTimeouts(now int64) {
	for i := 0; i < e.peers.count(); i++ {
		p := e.peers.at(i)
		if p.IsProtocolActive() && p.IsProtocolTimedOut(now, protocol.ProtocolTimeoutMS) {
			p.ResetProtocolState(now)
			p.SetExpected(e.initialExpected())
			e.fireProtocolError(p, ErrCodeTimeout)
		}
	}

	// Hard stop: something is stuck mid-exchange with the whole link dead.
	if e.anyPeerActive() && now-e.lastActivityMS > protocol.HardProtocolTimeoutMS {
		for i := 0; i < e.peers.count(); i++ {
			p := e.peers.at(i)
			p.ResetProtocolState(now)
			p.SetExpected(e.initialExpected())
		}
		if err := e.driver.StartReceive(); err != nil {
			log().Warn("receiver re-arm failed", "err", err)
		}
		e.noteActivity(now)
	}
}

func (e *Engine) initialExpected() protocol.MessageKind {
	if e.role == RoleAnchor {
		return protocol.KindPoll
	}
	return protocol.KindPollAck
}

func (e *Engine) pruneInactive(now int64) {
	for i := e.peers.count() - 1; i >= 0; i-- {
		p := e.peers.at(i)
		if p.IsInactive(now) {
			if e.handleInactivePeer != nil {
				e.handleInactivePeer(p)
			}
			e.peers.removeAt(i)
			if e.lastPeerIndex == i {
				e.lastPeerIndex = -1
			} else if e.lastPeerIndex > i {
				e.lastPeerIndex--
			}
		}
	}
}

func (e *Engine) noteActivity(now int64) {
	e.lastActivityMS = now
}

// --- intake dispatch --------------------------------------------------------

func (e *Engine) dispatch(item *queueItem, now int64) {
	frame := item.frame[:item.length]

	switch {
	case item.kind == protocol.KindBlink && e.role == RoleAnchor:
		e.handleBlink(frame, now)
		return
	case item.kind == protocol.KindRangingInit && e.role == RoleTag:
		e.handleRangingInit(item.source, now)
		return
	}

	peer := e.peers.find(item.source)
	if peer == nil {
		log().Debug("frame from unknown peer dropped",
			"kind", item.kind.String(), "src", fmt.Sprintf("%04X", item.source))
		return
	}
	peer.SetReceivedAck(true)

	if e.role == RoleAnchor {
		e.anchorHandle(peer, frame, item, now)
	} else {
		e.tagHandle(peer, frame, item, now)
	}
}

// handleBlink admits a newly announcing tag and answers with RANGING_INIT.
// The anchor tracks one tag at a time, so a fresh tag displaces the table.
func (e *Engine) handleBlink(frame []byte, now int64) {
	eui, short := protocol.DecodeBlink(frame)
	if p := e.peers.find(short); p != nil {
		p.NoteActivity(now)
		return
	}

	e.peers.clear()
	e.lastPeerIndex = -1
	peer := protocol.NewPeer(eui, short, now)
	peer.SetExpected(protocol.KindPoll)
	e.peers.add(peer)

	if e.handleBlinkPeer != nil {
		e.handleBlinkPeer(peer)
	}
	e.transmitRangingInit(peer)
	e.noteActivity(now)
}

// handleRangingInit admits a newly answering anchor on the tag side. The
// long-MAC frame carries only the anchor's short address.
func (e *Engine) handleRangingInit(source uint16, now int64) {
	if p := e.peers.find(source); p != nil {
		p.NoteActivity(now)
		return
	}

	peer := protocol.NewPeer(protocol.EUI{}, source, now)
	peer.SetExpected(protocol.KindPollAck)
	if !e.peers.add(peer) {
		log().Warn("peer table full, anchor ignored", "src", fmt.Sprintf("%04X", source))
		e.fireProtocolError(nil, ErrCodeTableFull)
		return
	}

	if e.handleNewPeer != nil {
		e.handleNewPeer(peer)
	}
	e.noteActivity(now)
}

func (e *Engine) fireProtocolError(peer *protocol.Peer, code int) {
	if e.handleProtocolError != nil {
		e.handleProtocolError(peer, code)
	}
}

func (e *Engine) fireRangeDone(peer *protocol.Peer) {
	e.lastPeerIndex = peer.Index()
	e.successCount++
	if e.handleNewRange != nil {
		e.handleNewRange()
	}
	if e.handleRangeComplete != nil {
		e.handleRangeComplete(peer)
	}
}

// --- transmit helpers -------------------------------------------------------

func (e *Engine) send(frame []byte, kind protocol.MessageKind, dest uint16) {
	e.txPending.push(txDesc{kind: kind, dest: dest})
	if err := e.driver.Transmit(frame); err != nil {
		log().Warn("transmit failed", "err", err)
	}
}

func (e *Engine) sendDelayed(frame []byte, kind protocol.MessageKind, dest uint16, delayUS uint16) {
	if _, err := e.driver.SetDelay(time.Duration(delayUS) * time.Microsecond); err != nil {
		log().Warn("delayed transmit scheduling failed", "err", err)
	}
	e.send(frame, kind, dest)
}

func (e *Engine) transmitBlink() {
	n := e.framer.EncodeBlink(e.buf[:], e.eui, e.shortAddr)
	e.send(e.buf[:n], protocol.KindBlink, protocol.BroadcastShort)
}

func (e *Engine) transmitRangingInit(peer *protocol.Peer) {
	n := e.framer.EncodeLong(e.buf[:], e.shortAddr, peer.EUI())
	e.buf[n] = byte(protocol.KindRangingInit)
	e.send(e.buf[:n+1], protocol.KindRangingInit, peer.ShortAddress())
}

// transmitPoll broadcasts a poll carrying every peer's staggered reply
// delay, so all anchors answer the same poll without colliding.
func (e *Engine) transmitPoll() {
	// Stretch the tick so every anchor's staggered reply fits in it.
	e.timerDelayMS = protocol.DefaultTimerMS +
		int64(e.peers.count())*3*protocol.DefaultReplyDelayUS/1000

	n := e.framer.EncodeShort(e.buf[:], e.shortAddr, protocol.BroadcastShort)
	e.buf[n] = byte(protocol.KindPoll)
	e.buf[n+1] = byte(e.peers.count())
	off := n + 2
	for i := 0; i < e.peers.count(); i++ {
		p := e.peers.at(i)
		p.SetReplyDelayUS(uint16((2*i + 1) * protocol.DefaultReplyDelayUS))
		binary.LittleEndian.PutUint16(e.buf[off:], p.ShortAddress())
		binary.LittleEndian.PutUint16(e.buf[off+2:], p.ReplyDelayUS())
		off += 4
	}
	e.send(e.buf[:off], protocol.KindPoll, protocol.BroadcastShort)
}

func (e *Engine) transmitPollAck(peer *protocol.Peer) {
	n := e.framer.EncodeShort(e.buf[:], e.shortAddr, peer.ShortAddress())
	e.buf[n] = byte(protocol.KindPollAck)
	e.sendDelayed(e.buf[:n+1], protocol.KindPollAck, peer.ShortAddress(), e.replyDelayUS)
}

// transmitRange broadcasts the range message with one timestamp triplet per
// peer. The departure time is scheduled first so it can be embedded as
// t_range_sent; the TX-completion callback overwrites the per-peer copy with
// the radio's own record of the same instant.
func (e *Engine) transmitRange() {
	stride := rangeRecordLen
	if e.rangePayload.set {
		stride = rangeRecordPayloadLen
	}

	e.timerDelayMS = protocol.DefaultTimerMS +
		int64(e.peers.count())*3*protocol.DefaultReplyDelayUS/1000

	n := e.framer.EncodeShort(e.buf[:], e.shortAddr, protocol.BroadcastShort)
	e.buf[n] = byte(protocol.KindRange)
	e.buf[n+1] = byte(e.peers.count())

	txTime, err := e.driver.SetDelay(protocol.DefaultReplyDelayUS * time.Microsecond)
	if err != nil {
		log().Warn("range scheduling failed", "err", err)
	}

	off := n + 2
	for i := 0; i < e.peers.count(); i++ {
		p := e.peers.at(i)
		p.TimeRangeSent = txTime
		binary.LittleEndian.PutUint16(e.buf[off:], p.ShortAddress())
		p.TimePollSent.PutBytes(e.buf[off+2:])
		p.TimePollAckReceived.PutBytes(e.buf[off+7:])
		p.TimeRangeSent.PutBytes(e.buf[off+12:])
		if e.rangePayload.set {
			binary.LittleEndian.PutUint32(e.buf[off+17:], e.rangePayload.dataType)
			binary.LittleEndian.PutUint32(e.buf[off+21:], e.rangePayload.dataValue)
		}
		off += stride
	}
	e.send(e.buf[:off], protocol.KindRange, protocol.BroadcastShort)
}

func (e *Engine) transmitRangeReport(peer *protocol.Peer) {
	n := e.framer.EncodeShort(e.buf[:], e.shortAddr, peer.ShortAddress())
	e.buf[n] = byte(protocol.KindRangeReport)
	putFloat32(e.buf[n+1:], peer.Range())
	putFloat32(e.buf[n+5:], peer.RXPower())
	end := n + 9
	if e.rangeReportPayload.set {
		binary.LittleEndian.PutUint32(e.buf[end:], e.rangeReportPayload.dataType)
		binary.LittleEndian.PutUint32(e.buf[end+4:], e.rangeReportPayload.dataValue)
		end += 8
	}
	e.sendDelayed(e.buf[:end], protocol.KindRangeReport, peer.ShortAddress(), e.replyDelayUS)
}

func (e *Engine) transmitRangeFailed(peer *protocol.Peer) {
	n := e.framer.EncodeShort(e.buf[:], e.shortAddr, peer.ShortAddress())
	e.buf[n] = byte(protocol.KindRangeFailed)
	e.send(e.buf[:n+1], protocol.KindRangeFailed, peer.ShortAddress())
}
