package os2l

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticBeatSource struct{}

func (staticBeatSource) CurrentBeatPosition() (float64, float64, int64) {
	return 4.5, 128, 1000
}

func TestHandshakeSendsLogonBurst(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	sender := New(staticBeatSource{}, nil, time.Now)

	serverDone := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- nil
			return
		}
		defer conn.Close()

		_, err = conn.Write([]byte(`{"evt":"subscribe","frequency":25}` + "\n"))
		require.NoError(t, err)

		scanner := bufio.NewScanner(conn)
		var lines []string
		deadline := time.Now().Add(500 * time.Millisecond)
		conn.SetReadDeadline(deadline)
		for len(lines) < 4 && scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		serverDone <- lines
	}()

	addr := ln.Addr().(*net.TCPAddr)
	go sender.Run("127.0.0.1", addr.Port)

	lines := <-serverDone
	sender.Stop()

	require.NotEmpty(t, lines)
	require.True(t, strings.Contains(lines[0], `"evt":"subscribed"`))
}

func TestEnqueueAndDequeueFIFO(t *testing.T) {
	s := New(staticBeatSource{}, nil, time.Now)
	s.Enqueue("a")
	s.Enqueue("b")
	msg, ok := s.dequeue()
	require.True(t, ok)
	require.Equal(t, "a", msg)
	msg, ok = s.dequeue()
	require.True(t, ok)
	require.Equal(t, "b", msg)
	_, ok = s.dequeue()
	require.False(t, ok)
}
