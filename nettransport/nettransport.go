// Package nettransport is a TCP-backed transport.Channel: one
// connection per rank pair, a reader goroutine per connection
// demultiplexing incoming frames by a logical channel id, source rank
// and tag — the per-rank demultiplexer a transport needs when the
// underlying medium isn't natively tag-addressed.
//
// Dup does not open new sockets: every rank calls Dup the same
// number of times in the same program order (the Director's
// construction sequence guarantees this), so the Nth Dup call on
// every rank can locally assign the same logical channel id without
// any handshake, the same invariant localbus relies on.
package nettransport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/nodecast/actorrt/cluster"
	"github.com/nodecast/actorrt/transport"
)

const headerSize = 16 // channelID, source, tag, byteCount: four int32s

// Reserved tags for the collectives built atop ordinary send/recv.
// Negative and far from transport.AnySource/AnyTag (-1) so they can
// never collide with a user-level tag, which is always a receiver's
// non-negative gid.
const (
	barrierJoinTag    = -1000
	barrierReleaseTag = -1001
	reduceJoinTag     = -1002
	reduceResultTag   = -1003
)

type frame struct {
	channelID int
	source    int
	tag       int
	data      []byte
}

// peerConn is one TCP connection to a remote rank, with a write mutex
// since multiple logical (dup'd) channels share the same socket.
type peerConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (p *peerConn) writeFrame(channelID, source, tag int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(channelID))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(source))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(tag))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(data)))

	if _, err := p.conn.Write(hdr); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := p.conn.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func readFrame(r io.Reader) (frame, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return frame{}, err
	}
	channelID := int(int32(binary.LittleEndian.Uint32(hdr[0:4])))
	source := int(int32(binary.LittleEndian.Uint32(hdr[4:8])))
	tag := int(int32(binary.LittleEndian.Uint32(hdr[8:12])))
	n := int(binary.LittleEndian.Uint32(hdr[12:16]))

	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return frame{}, err
		}
	}
	return frame{channelID: channelID, source: source, tag: tag, data: data}, nil
}

// hub is the rank-wide state shared by a base Channel and every
// channel Dup produces from it: the peer connections (opened once)
// and one inbox per logical channel id.
type hub struct {
	selfRank, size int
	capacity       int

	mu       sync.Mutex
	cond     *sync.Cond
	conns    map[int]*peerConn
	inboxes  map[int][]frame // channelID -> pending frames
	buffered int             // bytes currently sitting in loopback inboxes
	listener net.Listener
	dupCalls int
}

// Channel is one rank's view of one logical channel over the hub's
// shared connections.
type Channel struct {
	h         *hub
	channelID int
}

var _ transport.Channel = (*Channel)(nil)

// Dial establishes a full mesh of TCP connections for selfRank against
// topo (which must already be Complete) and returns the base logical
// channel (channel id 0). Lower ranks dial higher ranks' listeners;
// this rank listens for connections from every rank below it.
func Dial(topo *cluster.Topology, selfRank, bufferCapacity int) (*Channel, error) {
	if !topo.Complete() {
		return nil, fmt.Errorf("nettransport: topology incomplete for %d ranks", topo.Size())
	}
	size := topo.Size()
	myAddr, ok := topo.Address(selfRank)
	if !ok {
		return nil, fmt.Errorf("nettransport: no address for rank %d", selfRank)
	}

	ln, err := net.Listen("tcp", myAddr.String())
	if err != nil {
		return nil, fmt.Errorf("nettransport: listen on %s: %w", myAddr, err)
	}

	h := &hub{
		selfRank: selfRank,
		size:     size,
		capacity: bufferCapacity,
		conns:    make(map[int]*peerConn),
		inboxes:  make(map[int][]frame),
		listener: ln,
	}
	h.cond = sync.NewCond(&h.mu)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	incoming := selfRank // ranks [0, selfRank) dial in
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < incoming; i++ {
			conn, err := ln.Accept()
			if err != nil {
				recordErr(fmt.Errorf("nettransport: accept: %w", err))
				return
			}
			hdr := make([]byte, 4)
			if _, err := io.ReadFull(conn, hdr); err != nil {
				recordErr(fmt.Errorf("nettransport: rank handshake: %w", err))
				return
			}
			remoteRank := int(int32(binary.LittleEndian.Uint32(hdr)))
			pc := &peerConn{conn: conn}
			h.mu.Lock()
			h.conns[remoteRank] = pc
			h.mu.Unlock()
			go h.readLoop(pc)
		}
	}()

	for r := selfRank + 1; r < size; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr, ok := topo.Address(r)
			if !ok {
				recordErr(fmt.Errorf("nettransport: no address for rank %d", r))
				return
			}
			conn, err := net.Dial("tcp", addr.String())
			if err != nil {
				recordErr(fmt.Errorf("nettransport: dial rank %d: %w", r, err))
				return
			}
			hdr := make([]byte, 4)
			binary.LittleEndian.PutUint32(hdr, uint32(selfRank))
			if _, err := conn.Write(hdr); err != nil {
				recordErr(fmt.Errorf("nettransport: handshake to rank %d: %w", r, err))
				return
			}
			pc := &peerConn{conn: conn}
			h.mu.Lock()
			h.conns[r] = pc
			h.mu.Unlock()
			go h.readLoop(pc)
		}()
	}

	wg.Wait()
	if firstErr != nil {
		ln.Close()
		return nil, firstErr
	}

	return &Channel{h: h, channelID: 0}, nil
}

func (h *hub) readLoop(pc *peerConn) {
	for {
		f, err := readFrame(pc.conn)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.inboxes[f.channelID] = append(h.inboxes[f.channelID], f)
		h.cond.Broadcast()
		h.mu.Unlock()
	}
}

func (c *Channel) Rank() int { return c.h.selfRank }
func (c *Channel) Size() int { return c.h.size }

// Dup assigns the next logical channel id in this rank's own local
// sequence. Every rank must call Dup the same number of times, in the
// same order, for the ids to line up cluster-wide.
func (c *Channel) Dup() (transport.Channel, error) {
	c.h.mu.Lock()
	c.h.dupCalls++
	id := c.h.dupCalls
	c.h.mu.Unlock()
	return &Channel{h: c.h, channelID: id}, nil
}

func (c *Channel) BufferedSend(dest, tag int, data []byte) error {
	if dest < 0 || dest >= c.h.size {
		return fmt.Errorf("nettransport: dest rank %d out of range [0,%d): %w", dest, c.h.size, transport.ErrTransportUnavailable)
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	if dest == c.h.selfRank {
		c.h.mu.Lock()
		defer c.h.mu.Unlock()
		if c.h.capacity > 0 && c.h.buffered+len(buf) > c.h.capacity {
			return transport.ErrCapacityExceeded
		}
		c.h.inboxes[c.channelID] = append(c.h.inboxes[c.channelID], frame{
			channelID: c.channelID, source: c.h.selfRank, tag: tag, data: buf,
		})
		c.h.buffered += len(buf)
		c.h.cond.Broadcast()
		return nil
	}

	c.h.mu.Lock()
	pc, ok := c.h.conns[dest]
	c.h.mu.Unlock()
	if !ok {
		return fmt.Errorf("nettransport: no connection to rank %d: %w", dest, transport.ErrTransportUnavailable)
	}
	if err := pc.writeFrame(c.channelID, c.h.selfRank, tag, buf); err != nil {
		return fmt.Errorf("nettransport: write to rank %d: %w", dest, transport.ErrTransportUnavailable)
	}
	return nil
}

func matches(inbox []frame, source, tag int) int {
	for i, f := range inbox {
		if (source == transport.AnySource || f.source == source) &&
			(tag == transport.AnyTag || f.tag == tag) {
			return i
		}
	}
	return -1
}

func (c *Channel) Iprobe(source, tag int) (transport.ProbeResult, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()

	idx := matches(c.h.inboxes[c.channelID], source, tag)
	if idx < 0 {
		return transport.ProbeResult{Waiting: false}, nil
	}
	f := c.h.inboxes[c.channelID][idx]
	return transport.ProbeResult{Waiting: true, Source: f.source, Tag: f.tag, ByteCount: len(f.data)}, nil
}

func (c *Channel) Probe(source, tag int) (transport.ProbeResult, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()

	for {
		idx := matches(c.h.inboxes[c.channelID], source, tag)
		if idx >= 0 {
			f := c.h.inboxes[c.channelID][idx]
			return transport.ProbeResult{Waiting: true, Source: f.source, Tag: f.tag, ByteCount: len(f.data)}, nil
		}
		c.h.cond.Wait()
	}
}

func (c *Channel) Recv(source, tag int, buf []byte) error {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()

	for {
		idx := matches(c.h.inboxes[c.channelID], source, tag)
		if idx >= 0 {
			f := c.h.inboxes[c.channelID][idx]
			if len(buf) < len(f.data) {
				return fmt.Errorf("nettransport: recv buffer too small (%d < %d)", len(buf), len(f.data))
			}
			copy(buf, f.data)
			if f.source == c.h.selfRank {
				c.h.buffered -= len(f.data)
			}
			inbox := c.h.inboxes[c.channelID]
			c.h.inboxes[c.channelID] = append(inbox[:idx], inbox[idx+1:]...)
			return nil
		}
		c.h.cond.Wait()
	}
}

// Barrier is a centralized rendezvous built from ordinary send/recv:
// every rank reports to rank 0 on a reserved tag, rank 0 waits for all
// size reports (including its own), then releases every rank
// (including itself) on a second reserved tag.
func (c *Channel) Barrier() error {
	if err := c.BufferedSend(0, barrierJoinTag, nil); err != nil {
		return err
	}

	if c.h.selfRank == 0 {
		for i := 0; i < c.h.size; i++ {
			var buf [0]byte
			if err := c.Recv(transport.AnySource, barrierJoinTag, buf[:]); err != nil {
				return err
			}
		}
		for r := 0; r < c.h.size; r++ {
			if err := c.BufferedSend(r, barrierReleaseTag, nil); err != nil {
				return err
			}
		}
	}

	var buf [0]byte
	return c.Recv(0, barrierReleaseTag, buf[:])
}

// AllreduceSum mirrors Barrier's structure: every rank sends its value
// to rank 0, which sums all size values (including its own) and
// broadcasts the total back.
func (c *Channel) AllreduceSum(value int) (int, error) {
	if err := sendInt32(c, 0, reduceJoinTag, int32(value)); err != nil {
		return 0, err
	}

	if c.h.selfRank == 0 {
		total := 0
		for i := 0; i < c.h.size; i++ {
			v, err := recvInt32(c, transport.AnySource, reduceJoinTag)
			if err != nil {
				return 0, err
			}
			total += int(v)
		}
		for r := 0; r < c.h.size; r++ {
			if err := sendInt32(c, r, reduceResultTag, int32(total)); err != nil {
				return 0, err
			}
		}
	}

	result, err := recvInt32(c, 0, reduceResultTag)
	return int(result), err
}

func sendInt32(c *Channel, dest, tag int, v int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return c.BufferedSend(dest, tag, buf)
}

func recvInt32(c *Channel, source, tag int) (int32, error) {
	if _, err := c.Probe(source, tag); err != nil {
		return 0, err
	}
	buf := make([]byte, 4)
	if err := c.Recv(source, tag, buf); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}

// Close shuts down the listener and every peer connection this hub
// owns. Only the base channel's Close (channelID 0) actually tears
// down the network; dup'd channels share the same connections, so
// their Close is a no-op and the Director's shutdown sequence closes
// each channel exactly once regardless.
func (c *Channel) Close() error {
	if c.channelID != 0 {
		return nil
	}
	c.h.mu.Lock()
	defer c.h.mu.Unlock()

	var firstErr error
	for _, pc := range c.h.conns {
		if err := pc.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.h.listener.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
