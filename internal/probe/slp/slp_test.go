package slp_test

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcstatus/internal/probe/slp"
)

func TestVarInt_KnownEncodings(t *testing.T) {
	cases := []struct {
		value int32
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2147483647, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.bytes, slp.AppendVarInt(nil, tc.value), "encode %d", tc.value)

		got, err := slp.ReadVarInt(bytes.NewReader(tc.bytes))
		require.NoError(t, err)
		assert.Equal(t, tc.value, got, "decode %x", tc.bytes)
	}
}

func TestReadVarInt_TooBig(t *testing.T) {
	_, err := slp.ReadVarInt(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}))
	assert.True(t, errors.Is(err, slp.ErrVarIntTooBig))
}

func TestPacket_WriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	hs := slp.Handshake{
		ProtocolVersion: slp.DefaultProtocolVersion,
		ServerAddress:   "mc.example.org",
		ServerPort:      25565,
		NextState:       slp.NextStateStatus,
	}
	require.NoError(t, slp.WritePacket(&buf, slp.PacketHandshake, hs.Encode()))
	require.NoError(t, slp.WritePacket(&buf, slp.PacketStatusRequest, nil))

	r := bufio.NewReader(&buf)

	p, err := slp.ReadPacket(r)
	require.NoError(t, err)
	assert.Equal(t, slp.PacketHandshake, p.ID)
	decoded, err := slp.DecodeHandshake(p.Data)
	require.NoError(t, err)
	assert.Equal(t, hs, decoded)

	p, err = slp.ReadPacket(r)
	require.NoError(t, err)
	assert.Equal(t, slp.PacketStatusRequest, p.ID)
	assert.Empty(t, p.Data)
}

func TestStatusResponse_Payload(t *testing.T) {
	doc := `{"players":{"online":5,"max":20}}`
	got, err := slp.DecodeStatusResponse(slp.EncodeStatusResponse(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestReadPacket_RejectsOversizedLength(t *testing.T) {
	frame := slp.AppendVarInt(nil, slp.MaxPacketLength+1)
	_, err := slp.ReadPacket(bufio.NewReader(bytes.NewReader(frame)))
	assert.True(t, errors.Is(err, slp.ErrPacketTooLarge))
}

func TestReadString_LengthBeyondData(t *testing.T) {
	data := slp.AppendVarInt(nil, 50)
	data = append(data, "short"...)
	_, err := slp.DecodeStatusResponse(data)
	assert.True(t, errors.Is(err, slp.ErrStringTooLarge))
}

func TestLong(t *testing.T) {
	v, err := slp.DecodeLong(slp.EncodeLong(-42))
	require.NoError(t, err)
	assert.Equal(t, int64(-42), v)

	_, err = slp.DecodeLong([]byte{1, 2})
	assert.Error(t, err)
}
