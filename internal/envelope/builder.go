// Package envelope renders broker deliveries as compact JSON documents for
// the MQTT bridge and the Redis sink.
package envelope

import (
	"encoding/base64"
	"strconv"
	"time"
)

// Builder appends a flat JSON object into a reusable buffer. Field names are
// written verbatim and must not need escaping.
type Builder struct {
	buf    []byte
	opened bool
	first  bool
}

// NewBuilder creates a builder with initial capacity
func NewBuilder(capacity int) *Builder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Builder{buf: make([]byte, 0, capacity), first: true}
}

// Reset clears the builder for reuse
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.opened = false
	b.first = true
}

// Bytes returns the underlying buffer; it is overwritten by the next Reset
func (b *Builder) Bytes() []byte {
	return b.buf
}

// BeginObject starts a JSON object
func (b *Builder) BeginObject() {
	b.buf = append(b.buf, '{')
	b.opened = true
	b.first = true
}

// EndObject ends a JSON object
func (b *Builder) EndObject() {
	b.buf = append(b.buf, '}')
	b.opened = false
}

// AddStringField adds "name":"value" with escaping
func (b *Builder) AddStringField(name, value string) {
	b.key(name)
	b.buf = append(b.buf, '"')
	b.escapeString(value)
	b.buf = append(b.buf, '"')
}

// AddUintField adds "name":v
func (b *Builder) AddUintField(name string, v uint64) {
	b.key(name)
	b.buf = strconv.AppendUint(b.buf, v, 10)
}

// AddBase64Field adds "name":"<standard base64 of data>"
func (b *Builder) AddBase64Field(name string, data []byte) {
	b.key(name)
	b.buf = append(b.buf, '"')
	b.buf = base64.StdEncoding.AppendEncode(b.buf, data)
	b.buf = append(b.buf, '"')
}

// AddTimeField adds "name":"YYYY-MM-DDTHH:MM:SS.mmmZ" in UTC
func (b *Builder) AddTimeField(name string, t time.Time) {
	b.key(name)
	b.buf = append(b.buf, '"')
	b.buf = t.UTC().AppendFormat(b.buf, "2006-01-02T15:04:05.000Z07:00")
	b.buf = append(b.buf, '"')
}

func (b *Builder) key(name string) {
	b.sep()
	b.buf = append(b.buf, '"')
	b.buf = append(b.buf, name...)
	b.buf = append(b.buf, '"', ':')
}

func (b *Builder) sep() {
	if !b.opened {
		b.BeginObject()
	}
	if b.first {
		b.first = false
		return
	}
	b.buf = append(b.buf, ',')
}

// escapeString escapes JSON special characters. Invalid UTF-8 is copied as is;
// topics are caller supplied and normally ASCII.
func (b *Builder) escapeString(s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			b.buf = append(b.buf, '\\', c)
		case '\n':
			b.buf = append(b.buf, '\\', 'n')
		case '\r':
			b.buf = append(b.buf, '\\', 'r')
		case '\t':
			b.buf = append(b.buf, '\\', 't')
		default:
			if c < 0x20 {
				b.buf = append(b.buf, '\\', 'u', '0', '0', hex[c>>4], hex[c&0x0f])
			} else {
				b.buf = append(b.buf, c)
			}
		}
	}
}

const hex = "0123456789abcdef"
