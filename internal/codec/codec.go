// Package codec converts messages to and from CRC-protected serial frames.
//
// Frame layout, multi-byte integers big-endian:
//
//	START(0x7E) | TYPE(1) | MSG_ID(2) | QOS(1) | TOPIC_LEN(1) | TOPIC | PAYLOAD_LEN(2) | PAYLOAD | CRC16(2) | END(0x7F)
//
// The CRC covers TYPE through the last payload byte. Topic and payload bytes
// are not escaped, so content containing StartByte or EndByte can desynchronize
// a stream reader. This matches the deployed wire format.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ibs-source/serial-broker/internal/message"
)

// Frame delimiters and size bounds
const (
	StartByte byte = 0x7E
	EndByte   byte = 0x7F

	// MinFrameSize covers every fixed field with an empty topic and payload
	MinFrameSize = 11

	MaxTopicLen   = 0xFF
	MaxPayloadLen = 0xFFFF

	headerLen  = 6 // START, TYPE, MSG_ID, QOS, TOPIC_LEN
	trailerLen = 3 // CRC16, END
)

var (
	ErrShortFrame      = errors.New("codec: frame shorter than minimum size")
	ErrBadStart        = errors.New("codec: missing start byte")
	ErrTruncated       = errors.New("codec: length field exceeds frame")
	ErrCRCMismatch     = errors.New("codec: crc mismatch")
	ErrBadEnd          = errors.New("codec: missing end byte")
	ErrTopicTooLong    = errors.New("codec: topic longer than 255 bytes")
	ErrPayloadTooLarge = errors.New("codec: payload larger than 65535 bytes")
)

// FrameSize returns the encoded length of a message with the given field sizes
func FrameSize(topicLen, payloadLen int) int {
	return MinFrameSize + topicLen + payloadLen
}

// Encode serializes msg into a complete frame
func Encode(msg *message.Message) ([]byte, error) {
	if len(msg.Topic) > MaxTopicLen {
		return nil, fmt.Errorf("%w: %d", ErrTopicTooLong, len(msg.Topic))
	}
	if len(msg.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d", ErrPayloadTooLarge, len(msg.Payload))
	}

	buf := make([]byte, 0, FrameSize(len(msg.Topic), len(msg.Payload)))
	buf = append(buf, StartByte, byte(msg.Type))
	buf = binary.BigEndian.AppendUint16(buf, msg.ID)
	buf = append(buf, byte(msg.QoS), byte(len(msg.Topic)))
	buf = append(buf, msg.Topic...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Payload))) // #nosec G115 - bounded above
	buf = append(buf, msg.Payload...)
	buf = binary.BigEndian.AppendUint16(buf, CRC16(buf[1:]))
	buf = append(buf, EndByte)
	return buf, nil
}

// Decode parses one frame. Bytes after the END byte are ignored.
// The returned payload never aliases data.
func Decode(data []byte) (message.Message, error) {
	if len(data) < MinFrameSize {
		return message.Message{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	if data[0] != StartByte {
		return message.Message{}, ErrBadStart
	}

	msg := message.Message{
		Type: message.Type(data[1]),
		ID:   binary.BigEndian.Uint16(data[2:4]),
		QoS:  message.QoS(data[4]),
	}

	pos := headerLen
	topicLen := int(data[5])
	if pos+topicLen+2 > len(data) {
		return message.Message{}, fmt.Errorf("%w: topic length %d", ErrTruncated, topicLen)
	}
	msg.Topic = string(data[pos : pos+topicLen])
	pos += topicLen

	payloadLen := int(binary.BigEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+payloadLen+trailerLen > len(data) {
		return message.Message{}, fmt.Errorf("%w: payload length %d", ErrTruncated, payloadLen)
	}
	if payloadLen > 0 {
		msg.Payload = append(message.Payload(nil), data[pos:pos+payloadLen]...)
	}
	pos += payloadLen

	received := binary.BigEndian.Uint16(data[pos : pos+2])
	if computed := CRC16(data[1:pos]); received != computed {
		return message.Message{}, fmt.Errorf("%w: got 0x%04X, computed 0x%04X", ErrCRCMismatch, received, computed)
	}
	pos += 2

	if data[pos] != EndByte {
		return message.Message{}, ErrBadEnd
	}

	return msg, nil
}
