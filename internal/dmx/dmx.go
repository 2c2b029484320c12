// Package dmx implements the DMX Overlay Client: a UDP datagram encoder
// for a fixed-layout overlay protocol sent to a lighting host, per
// spec §4.9 and the wire layout in §6.
package dmx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
)

// UniverseSize is the number of channels in a DMX universe frame.
const UniverseSize = 512

// Magic is the fixed protocol magic value (§6).
const Magic uint32 = 0x00007799

// MaxDevices bounds the number of overlay descriptors carried per
// datagram; the spec allows 20-100, defaulting to the teacher-adjacent
// Art-Net service's per-universe device bound philosophy.
const MaxDevices = 32

// Overlay is one overlay window descriptor (spec §3). Length is 0 on the
// wire when inactive; OriginalLength is retained internally so Activate
// can restore it.
type Overlay struct {
	Start          uint16
	Length         uint16
	Active         bool
	OriginalLength uint16
}

func (o Overlay) wireLength() uint16 {
	if !o.Active {
		return 0
	}
	return o.Length
}

// Universe is a fixed 512-byte frame plus a bounded array of overlay
// descriptors.
type Universe struct {
	ID       uint8
	Frame    [UniverseSize]byte
	Overlays []Overlay
}

// Encode serialises u per spec §6's little-endian layout:
// magic(u32) universe(u8) overlay_count(u16) [MaxDevices x (start:u16,length:u16)] frame[512]
func Encode(u Universe) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, Magic)
	binary.Write(buf, binary.LittleEndian, u.ID)
	binary.Write(buf, binary.LittleEndian, uint16(len(u.Overlays)))

	for i := 0; i < MaxDevices; i++ {
		var start, length uint16
		if i < len(u.Overlays) {
			start = u.Overlays[i].Start
			length = u.Overlays[i].wireLength()
		}
		binary.Write(buf, binary.LittleEndian, start)
		binary.Write(buf, binary.LittleEndian, length)
	}

	buf.Write(u.Frame[:])
	return buf.Bytes()
}

// Decode parses a datagram produced by Encode. It is the inverse used by
// the round-trip property in spec §8: decode then re-encode must yield
// byte-identical output.
func Decode(data []byte) (Universe, error) {
	want := 4 + 1 + 2 + 4*MaxDevices + UniverseSize
	if len(data) != want {
		return Universe{}, fmt.Errorf("dmx: expected %d bytes, got %d", want, len(data))
	}

	r := bytes.NewReader(data)
	var magic uint32
	binary.Read(r, binary.LittleEndian, &magic)
	if magic != Magic {
		return Universe{}, fmt.Errorf("dmx: bad magic %#x", magic)
	}

	var u Universe
	binary.Read(r, binary.LittleEndian, &u.ID)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)

	headers := make([]Overlay, MaxDevices)
	for i := range headers {
		binary.Read(r, binary.LittleEndian, &headers[i].Start)
		binary.Read(r, binary.LittleEndian, &headers[i].Length)
		headers[i].Active = headers[i].Length > 0
		headers[i].OriginalLength = headers[i].Length
	}
	if int(count) <= MaxDevices {
		u.Overlays = headers[:count]
	} else {
		u.Overlays = headers
	}

	frameBytes := make([]byte, UniverseSize)
	r.Read(frameBytes)
	copy(u.Frame[:], frameBytes)

	return u, nil
}

// Client sends one UDP datagram per mutation to the lighting host,
// per spec §4.9.
type Client struct {
	conn     *net.UDPConn
	logger   *slog.Logger
	registry map[int]*Overlay
}

// New dials a UDP socket to host:port. No data is sent until Start.
func New(host string, port int, logger *slog.Logger) (*Client, error) {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("dmx: resolve %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dmx: dial %s:%d: %w", host, port, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, logger: logger, registry: make(map[int]*Overlay)}, nil
}

// Start registers the known overlay effects in deactivated state, then
// sends one datagram with all overlays deactivated.
func (c *Client) Start(overlays map[int]Overlay) error {
	for id, ov := range overlays {
		ov.Active = false
		cp := ov
		c.registry[id] = &cp
	}
	return c.sendSnapshot(0)
}

// Activate turns on overlay id (restoring its OriginalLength) and sends
// one datagram reflecting the new state.
func (c *Client) Activate(id int, universe uint8) error {
	ov, ok := c.registry[id]
	if !ok {
		return fmt.Errorf("dmx: unknown overlay %d", id)
	}
	ov.Active = true
	ov.Length = ov.OriginalLength
	return c.sendSnapshot(universe)
}

// Deactivate turns off overlay id and sends one datagram.
func (c *Client) Deactivate(id int, universe uint8) error {
	ov, ok := c.registry[id]
	if !ok {
		return fmt.Errorf("dmx: unknown overlay %d", id)
	}
	ov.Active = false
	return c.sendSnapshot(universe)
}

func (c *Client) sendSnapshot(universe uint8) error {
	var u Universe
	u.ID = universe
	for _, ov := range c.registry {
		u.Overlays = append(u.Overlays, *ov)
	}
	_, err := c.conn.Write(Encode(u))
	if err != nil {
		c.logger.Warn("dmx send failed", "error", err)
	}
	return err
}

// Stop sends a single "clear" frame: one overlay of length 512, all
// zeros, blanking the universe, then closes the socket.
func (c *Client) Stop() error {
	u := Universe{
		Overlays: []Overlay{{Start: 0, Length: UniverseSize, Active: true, OriginalLength: UniverseSize}},
	}
	if _, err := c.conn.Write(Encode(u)); err != nil {
		c.logger.Warn("dmx clear frame failed", "error", err)
	}
	return c.conn.Close()
}
