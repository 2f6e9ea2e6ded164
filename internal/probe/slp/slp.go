// Package slp implements the framing of the Minecraft Java edition Server
// List Ping exchange: VarInt-prefixed packets carrying a handshake, a status
// request/response and a ping/pong pair.
package slp

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Packet ids used by the status exchange. Client and server reuse the same
// ids for the request and its answer.
const (
	PacketHandshake      int32 = 0x00
	PacketStatusRequest  int32 = 0x00
	PacketStatusResponse int32 = 0x00
	PacketPing           int32 = 0x01
	PacketPong           int32 = 0x01

	NextStateStatus int32 = 1

	// DefaultProtocolVersion is sent in the handshake. Servers answer a status
	// request regardless of the version a client announces.
	DefaultProtocolVersion int32 = 767

	// MaxPacketLength bounds a single inbound packet. Status responses with a
	// favicon are a few tens of KiB; anything near 2 MiB is not a real server.
	MaxPacketLength = 2 << 20

	maxStringLength = 32767 * 4
)

var (
	ErrVarIntTooBig   = errors.New("slp: varint is too big")
	ErrPacketTooLarge = errors.New("slp: packet exceeds maximum length")
	ErrStringTooLarge = errors.New("slp: string exceeds maximum length")
)

// AppendVarInt appends v in the protocol's LEB128 encoding.
func AppendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for {
		if u&^0x7F == 0 {
			return append(b, byte(u))
		}
		b = append(b, byte(u&0x7F|0x80))
		u >>= 7
	}
}

// ReadVarInt reads a VarInt of at most five bytes.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, ErrVarIntTooBig
}

// AppendString appends s as a VarInt length followed by its UTF-8 bytes.
func AppendString(b []byte, s string) []byte {
	b = AppendVarInt(b, int32(len(s)))
	return append(b, s...)
}

// ReadString reads a VarInt-prefixed UTF-8 string.
func ReadString(r *bytes.Reader) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > maxStringLength || int(n) > r.Len() {
		return "", ErrStringTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Packet is one decoded frame: its id and the remaining payload.
type Packet struct {
	ID   int32
	Data []byte
}

// WritePacket frames payload behind id and writes it in a single call.
func WritePacket(w io.Writer, id int32, payload []byte) error {
	body := AppendVarInt(make([]byte, 0, len(payload)+5), id)
	body = append(body, payload...)
	frame := AppendVarInt(make([]byte, 0, len(body)+5), int32(len(body)))
	frame = append(frame, body...)
	_, err := w.Write(frame)
	return err
}

// ReadPacket reads one length-prefixed frame.
func ReadPacket(r *bufio.Reader) (Packet, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return Packet{}, err
	}
	if length <= 0 || length > MaxPacketLength {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, err
	}
	br := bytes.NewReader(body)
	id, err := ReadVarInt(br)
	if err != nil {
		return Packet{}, err
	}
	return Packet{ID: id, Data: body[len(body)-br.Len():]}, nil
}

// Handshake is the first packet a client sends.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

// Encode returns the handshake payload (without packet id).
func (h Handshake) Encode() []byte {
	b := AppendVarInt(nil, h.ProtocolVersion)
	b = AppendString(b, h.ServerAddress)
	b = binary.BigEndian.AppendUint16(b, h.ServerPort)
	return AppendVarInt(b, h.NextState)
}

// DecodeHandshake parses a handshake payload.
func DecodeHandshake(data []byte) (Handshake, error) {
	r := bytes.NewReader(data)
	var h Handshake
	var err error
	if h.ProtocolVersion, err = ReadVarInt(r); err != nil {
		return h, fmt.Errorf("slp: handshake protocol: %w", err)
	}
	if h.ServerAddress, err = ReadString(r); err != nil {
		return h, fmt.Errorf("slp: handshake address: %w", err)
	}
	if err = binary.Read(r, binary.BigEndian, &h.ServerPort); err != nil {
		return h, fmt.Errorf("slp: handshake port: %w", err)
	}
	if h.NextState, err = ReadVarInt(r); err != nil {
		return h, fmt.Errorf("slp: handshake next state: %w", err)
	}
	return h, nil
}

// EncodeStatusResponse returns the payload of a status response.
func EncodeStatusResponse(json string) []byte {
	return AppendString(nil, json)
}

// DecodeStatusResponse extracts the JSON document of a status response.
func DecodeStatusResponse(data []byte) (string, error) {
	return ReadString(bytes.NewReader(data))
}

// EncodeLong returns the 8-byte big-endian payload of a ping or pong.
func EncodeLong(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

// DecodeLong is the inverse of EncodeLong.
func DecodeLong(data []byte) (int64, error) {
	if len(data) < 8 {
		return 0, io.ErrUnexpectedEOF
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}
