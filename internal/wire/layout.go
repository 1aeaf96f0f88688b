package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrDiscriminator is returned when a payload's first 8 bytes do not match
// the layout being decoded.
var ErrDiscriminator = errors.New("discriminator mismatch")

// FieldType is the wire encoding of a single layout field.
type FieldType string

// Supported field encodings.
const (
	FieldString    FieldType = "string"    // u32 LE length, then UTF-8 bytes
	FieldPublicKey FieldType = "publicKey" // 32 raw bytes
	FieldU64       FieldType = "u64"
	FieldBool      FieldType = "bool"
)

// Field is one entry of a layout table.
type Field struct {
	Name string    `yaml:"name"`
	Type FieldType `yaml:"type"`
	// Optional fields may be missing when the payload ends early.
	Optional bool `yaml:"optional"`
}

// Layout is an ordered field table behind an 8-byte discriminator.
type Layout struct {
	Name          string  `yaml:"name"`
	Discriminator uint64  `yaml:"discriminator"`
	Fields        []Field `yaml:"fields"`
}

// Create discriminators. The logs variant sees the emitted event, the block
// variant sees the instruction itself.
const (
	CreateEventDiscriminator       uint64 = 8530921459188068891
	CreateInstructionDiscriminator uint64 = 8576854823835016728
)

// CreateEventLayout decodes the CreateEvent emitted in program logs.
var CreateEventLayout = Layout{
	Name:          "create_event",
	Discriminator: CreateEventDiscriminator,
	Fields: []Field{
		{Name: "name", Type: FieldString},
		{Name: "symbol", Type: FieldString},
		{Name: "uri", Type: FieldString},
		{Name: "mint", Type: FieldPublicKey},
		{Name: "bondingCurve", Type: FieldPublicKey},
		{Name: "user", Type: FieldPublicKey, Optional: true},
	},
}

// CreateInstructionLayout decodes the arguments of the create instruction.
// Addresses come from the instruction's account list instead.
var CreateInstructionLayout = Layout{
	Name:          "create_instruction",
	Discriminator: CreateInstructionDiscriminator,
	Fields: []Field{
		{Name: "name", Type: FieldString},
		{Name: "symbol", Type: FieldString},
		{Name: "uri", Type: FieldString},
	},
}

// LoadLayout reads a layout table from a YAML or JSON document, for programs
// whose field list changes without a code release.
func LoadLayout(r io.Reader) (*Layout, error) {
	var l Layout
	if err := yaml.NewDecoder(r).Decode(&l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks field names are unique and types are known.
func (l *Layout) Validate() error {
	if len(l.Fields) == 0 {
		return fmt.Errorf("layout %q has no fields", l.Name)
	}
	seen := make(map[string]bool, len(l.Fields))
	optional := false
	for _, f := range l.Fields {
		switch f.Type {
		case FieldString, FieldPublicKey, FieldU64, FieldBool:
		default:
			return fmt.Errorf("layout %q: field %q has unknown type %q", l.Name, f.Name, f.Type)
		}
		if seen[f.Name] {
			return fmt.Errorf("layout %q: duplicate field %q", l.Name, f.Name)
		}
		if optional && !f.Optional {
			return fmt.Errorf("layout %q: required field %q after optional field", l.Name, f.Name)
		}
		seen[f.Name] = true
		optional = optional || f.Optional
	}
	return nil
}

// Values holds decoded fields keyed by name. Strings decode to string,
// addresses to PublicKey, u64 to uint64, bool to bool.
type Values map[string]any

// String returns a string field or "".
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// PublicKey returns an address field and whether it was present.
func (v Values) PublicKey(name string) (PublicKey, bool) {
	pk, ok := v[name].(PublicKey)
	return pk, ok
}

// Uint64 returns a u64 field or 0.
func (v Values) Uint64(name string) uint64 {
	n, _ := v[name].(uint64)
	return n
}

// Decode checks the discriminator and reads every field in order. Trailing
// bytes after the last field are ignored.
func (l *Layout) Decode(data []byte) (Values, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %s discriminator", ErrShortBuffer, l.Name)
	}
	if got := binary.LittleEndian.Uint64(data); got != l.Discriminator {
		return nil, fmt.Errorf("%w: %s want %d got %d", ErrDiscriminator, l.Name, l.Discriminator, got)
	}
	out := make(Values, len(l.Fields))
	off := 8
	for _, f := range l.Fields {
		if off >= len(data) && f.Optional {
			break
		}
		n, val, err := decodeField(f, data[off:])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", l.Name, f.Name, err)
		}
		out[f.Name] = val
		off += n
	}
	return out, nil
}

func decodeField(f Field, b []byte) (int, any, error) {
	switch f.Type {
	case FieldString:
		if len(b) < 4 {
			return 0, nil, ErrShortBuffer
		}
		size := uint64(binary.LittleEndian.Uint32(b))
		if size > uint64(len(b)-4) {
			return 0, nil, fmt.Errorf("%w: string of %d bytes, %d left", ErrShortBuffer, size, len(b)-4)
		}
		n := int(size)
		s := b[4 : 4+n]
		if !utf8.Valid(s) {
			return 0, nil, errors.New("invalid utf-8")
		}
		return 4 + n, string(s), nil
	case FieldPublicKey:
		pk, err := PublicKeyFromBytes(b)
		if err != nil {
			return 0, nil, err
		}
		return PublicKeyLength, pk, nil
	case FieldU64:
		if len(b) < 8 {
			return 0, nil, ErrShortBuffer
		}
		return 8, binary.LittleEndian.Uint64(b), nil
	case FieldBool:
		if len(b) < 1 {
			return 0, nil, ErrShortBuffer
		}
		return 1, b[0] != 0, nil
	}
	return 0, nil, fmt.Errorf("unknown field type %q", f.Type)
}

// Encode writes the discriminator and fields in layout order. Optional
// fields missing from values end the payload.
func (l *Layout) Encode(values Values) ([]byte, error) {
	buf := binary.LittleEndian.AppendUint64(nil, l.Discriminator)
	for _, f := range l.Fields {
		v, ok := values[f.Name]
		if !ok {
			if f.Optional {
				break
			}
			return nil, fmt.Errorf("%s: missing field %q", l.Name, f.Name)
		}
		var err error
		buf, err = encodeField(buf, f, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", l.Name, f.Name, err)
		}
	}
	return buf, nil
}

func encodeField(buf []byte, f Field, v any) ([]byte, error) {
	switch f.Type {
	case FieldString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		return append(buf, s...), nil
	case FieldPublicKey:
		pk, ok := v.(PublicKey)
		if !ok {
			return nil, fmt.Errorf("want PublicKey, got %T", v)
		}
		return append(buf, pk[:]...), nil
	case FieldU64:
		n, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("want uint64, got %T", v)
		}
		return binary.LittleEndian.AppendUint64(buf, n), nil
	case FieldBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	}
	return nil, fmt.Errorf("unknown field type %q", f.Type)
}
