// Package os2l implements the OS2L Sender: a background TCP session to
// the lighting host that performs a subscribe/logon handshake, then
// streams beat events and periodic progress updates, per spec §4.7.
package os2l

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// State is the OS2L session's state machine position.
type State int32

const (
	Disconnected State = iota
	Connecting
	AwaitingSubscribe
	LoggedOn
	Stopped
)

const defaultUpdateInterval = 200 * time.Millisecond

// BeatSource supplies the current beat position the Sender needs to
// build update/beat messages; the Engine implements it over the Audio
// Analyser's state.
type BeatSource interface {
	CurrentBeatPosition() (pos float64, bpm float64, timeElapsedMs int64)
}

// Sender owns the TCP socket and the outbound message queue. All socket
// I/O happens on the goroutine started by Run; Enqueue is safe to call
// from any goroutine (the main loop, per spec §5).
type Sender struct {
	logger *slog.Logger
	now    func() time.Time
	beats  BeatSource

	state    atomic.Int32
	loggedOn atomic.Bool
	running  atomic.Bool

	mu             sync.Mutex
	outbound       []string
	updateInterval time.Duration
	lastUpdate     time.Time

	conn net.Conn
}

// New builds a Sender for the given beat source.
func New(beats BeatSource, logger *slog.Logger, nowFn func() time.Time) *Sender {
	if nowFn == nil {
		nowFn = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sender{logger: logger, now: nowFn, beats: beats, updateInterval: defaultUpdateInterval}
	s.state.Store(int32(Disconnected))
	return s
}

// State reports the current session state.
func (s *Sender) State() State {
	return State(s.state.Load())
}

// Enqueue appends a message to the unbounded outbound queue.
func (s *Sender) Enqueue(msg string) {
	s.mu.Lock()
	s.outbound = append(s.outbound, msg)
	s.mu.Unlock()
}

func (s *Sender) dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outbound) == 0 {
		return "", false
	}
	msg := s.outbound[0]
	s.outbound = s.outbound[1:]
	return msg, true
}

// Run dials host:port and runs the sender loop until Stop is called or
// the connection fails permanently. It is meant to run on its own
// goroutine, started once at process startup.
func (s *Sender) Run(host string, port int) error {
	s.state.Store(int32(Connecting))
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		s.state.Store(int32(Disconnected))
		return fmt.Errorf("os2l dial: %w", err)
	}
	s.conn = conn
	s.state.Store(int32(AwaitingSubscribe))
	s.running.Store(true)

	incoming := make(chan string, 64)
	go s.readLoop(conn, incoming)

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for s.running.Load() {
		select {
		case line, ok := <-incoming:
			if !ok {
				s.logger.Info("os2l connection closed by peer")
				s.running.Store(false)
				continue
			}
			s.handleInbound(line)
		case <-ticker.C:
			s.tick()
		}
	}

	s.sendRaw(ShutdownMessage())
	s.state.Store(int32(Stopped))
	return conn.Close()
}

func (s *Sender) readLoop(conn net.Conn, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out <- line
	}
}

func (s *Sender) handleInbound(line string) {
	dec := json.NewDecoder(strings.NewReader(line))
	for {
		var req SubscribeRequest
		if err := dec.Decode(&req); err != nil {
			return
		}
		if req.Evt == "subscribe" && req.Frequency > 0 {
			s.mu.Lock()
			s.updateInterval = time.Duration(req.Frequency) * time.Millisecond
			s.mu.Unlock()
			s.logOn()
		}
	}
}

func (s *Sender) logOn() {
	s.sendRaw(LogonMessage())
	s.loggedOn.Store(true)
	s.state.Store(int32(LoggedOn))
}

func (s *Sender) tick() {
	if msg, ok := s.dequeue(); ok {
		s.sendRaw(msg)
	}

	if !s.loggedOn.Load() {
		return
	}
	now := s.now()
	s.mu.Lock()
	interval := s.updateInterval
	due := now.Sub(s.lastUpdate) > interval
	s.mu.Unlock()
	if due && s.beats != nil {
		pos, _, elapsed := s.beats.CurrentBeatPosition()
		s.Enqueue(UpdateMessage(pos, elapsed))
		s.mu.Lock()
		s.lastUpdate = now
		s.mu.Unlock()
	}
}

func (s *Sender) sendRaw(msg string) {
	if s.conn == nil {
		return
	}
	if _, err := fmt.Fprintln(s.conn, msg); err != nil {
		s.logger.Error("os2l write failed", "error", err)
	}
}

// Stop flags the sender loop to exit; Run then sends the shutdown
// message and closes the socket.
func (s *Sender) Stop() {
	s.running.Store(false)
}

// EmitBeat enqueues a beat message, per spec §4.7.
func (s *Sender) EmitBeat(change bool, pos, bpm int, strength float64) {
	s.Enqueue(BeatMessage(change, pos, bpm, strength))
}
