// Command framecheck exercises the DMX and OS2L wire round-trip
// properties named in spec §8 outside of `go test`, for manual
// verification against a real lighting host's captured traffic.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cartomix/lightshow/internal/dmx"
	"github.com/cartomix/lightshow/internal/os2l"
)

func main() {
	dmxFrame := flag.String("dmx-frame", "", "path to a captured DMX overlay datagram to round-trip")
	beat := flag.Bool("beat", false, "round-trip a sample OS2L beat message")
	flag.Parse()

	if *dmxFrame == "" && !*beat {
		log.Fatal("nothing to check: pass -dmx-frame or -beat")
	}

	if *dmxFrame != "" {
		if err := checkDMXFrame(*dmxFrame); err != nil {
			log.Fatalf("dmx round-trip failed: %v", err)
		}
		fmt.Printf("dmx frame %s round-trips byte-identical\n", *dmxFrame)
	}

	if *beat {
		if err := checkBeatMessage(); err != nil {
			log.Fatalf("os2l beat round-trip failed: %v", err)
		}
		fmt.Println("os2l beat message round-trips")
	}
}

// checkDMXFrame decodes a captured datagram and re-encodes it, failing if
// the bytes differ (spec §8's "decode then re-encode must yield
// byte-identical output").
func checkDMXFrame(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	universe, err := dmx.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	reencoded := dmx.Encode(universe)
	if len(reencoded) != len(raw) {
		return fmt.Errorf("length mismatch: got %d bytes, want %d", len(reencoded), len(raw))
	}
	for i := range raw {
		if raw[i] != reencoded[i] {
			return fmt.Errorf("byte %d differs: got %#x, want %#x", i, reencoded[i], raw[i])
		}
	}
	return nil
}

// checkBeatMessage builds a beat message, parses it back, and confirms
// every field survived the trip (spec §8's "encode→parse OS2L beat
// message" property).
func checkBeatMessage() error {
	const (
		change   = true
		pos      = 42
		bpm      = 128
		strength = 0.7
	)
	msg := os2l.BeatMessage(change, pos, bpm, strength)

	var decoded os2l.BeatEvent
	if err := json.Unmarshal([]byte(msg), &decoded); err != nil {
		return fmt.Errorf("unmarshal %q: %w", msg, err)
	}
	if decoded.Evt != "beat" || decoded.Change != change || decoded.Pos != pos || decoded.BPM != bpm || decoded.Strength != strength {
		return fmt.Errorf("field mismatch after round-trip: %+v", decoded)
	}
	return nil
}
