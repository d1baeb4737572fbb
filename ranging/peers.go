package ranging

import "github.com/ystepanoff/dwranging/protocol"

// peerTable is the bounded, flat set of discovered peers, indexed
// 0..count-1. Lookups are by 2-byte short address, which is unique across
// live entries.
type peerTable struct {
	peers []*protocol.Peer
}

func (t *peerTable) count() int {
	return len(t.peers)
}

func (t *peerTable) at(i int) *protocol.Peer {
	return t.peers[i]
}

func (t *peerTable) last() *protocol.Peer {
	if len(t.peers) == 0 {
		return nil
	}
	return t.peers[len(t.peers)-1]
}

func (t *peerTable) find(short uint16) *protocol.Peer {
	for _, p := range t.peers {
		if p.ShortAddress() == short {
			return p
		}
	}
	return nil
}

// add appends a peer. Returns false on a duplicate short address or a full
// table.
func (t *peerTable) add(p *protocol.Peer) bool {
	if len(t.peers) >= protocol.MaxPeers {
		return false
	}
	if t.find(p.ShortAddress()) != nil {
		return false
	}
	p.SetIndex(len(t.peers))
	t.peers = append(t.peers, p)
	return true
}

// removeAt deletes the entry at index, shifting the tail down and
// re-indexing it.
func (t *peerTable) removeAt(index int) {
	if index < 0 || index >= len(t.peers) {
		return
	}
	copy(t.peers[index:], t.peers[index+1:])
	t.peers = t.peers[:len(t.peers)-1]
	for i := index; i < len(t.peers); i++ {
		t.peers[i].SetIndex(i)
	}
}

// clear empties the table. The anchor resets its table before inserting a
// newly blinking tag, so it tracks at most one tag at a time.
func (t *peerTable) clear() {
	t.peers = t.peers[:0]
}
