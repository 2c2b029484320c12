package dmx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatagramLengthIsExact(t *testing.T) {
	u := Universe{Overlays: []Overlay{{Start: 10, Length: 20, Active: true, OriginalLength: 20}}}
	data := Encode(u)
	require.Len(t, data, 4+1+2+4*MaxDevices+UniverseSize)
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	u := Universe{
		ID: 3,
		Overlays: []Overlay{
			{Start: 0, Length: 64, Active: true, OriginalLength: 64},
			{Start: 100, Length: 0, Active: false, OriginalLength: 50},
		},
	}
	for i := range u.Frame {
		u.Frame[i] = byte(i % 256)
	}

	encoded := Encode(u)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	reencoded := Encode(decoded)
	require.Equal(t, encoded, reencoded)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	u := Universe{}
	data := Encode(u)
	data[0] = 0xFF
	_, err := Decode(data)
	require.Error(t, err)
}

func TestInactiveOverlayWireLengthIsZero(t *testing.T) {
	ov := Overlay{Start: 5, Length: 10, Active: false, OriginalLength: 10}
	require.Equal(t, uint16(0), ov.wireLength())
}
