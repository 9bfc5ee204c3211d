package wire

import (
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/pavanmanishd/protoarena/arena"
	"github.com/pavanmanishd/protoarena/message"
)

// Unmarshal merges the wire encoding in b into m. Strings, bytes and
// submessages are copied into m's arena; b is not retained. Repeated
// scalars are accepted both packed and unpacked; unknown fields are
// skipped.
func Unmarshal(b []byte, m message.Mut) error {
	return unmarshal(b, m, 0)
}

// UnmarshalNew decodes b into a new message of type d in a new arena.
func UnmarshalNew(b []byte, d *message.Descriptor, opts ...arena.Option) (*message.Owned, error) {
	o := message.New(d, opts...)
	m := o.Mut()
	err := Unmarshal(b, m)
	m.Done()
	if err != nil {
		o.Release()
		return nil, err
	}
	return o, nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
}

func unmarshal(b []byte, m message.Mut, depth int) error {
	if depth > maxDepth {
		return ErrRecursionLimit
	}
	d := m.Descriptor()
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]

		f := d.FieldByNumber(int32(num))
		if f == nil {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return malformed(n)
			}
			b = b[n:]
			continue
		}
		n, err := consumeField(b, m, f, typ, depth)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", d.Name(), f.Name, err)
		}
		b = b[n:]
	}
	return nil
}

func consumeField(b []byte, m message.Mut, f *message.FieldDesc, typ protowire.Type, depth int) (int, error) {
	if f.Kind == message.MessageKind || f.IsMap() {
		if typ != protowire.BytesType {
			return 0, fmt.Errorf("%w: %v for %v", ErrWireType, typ, f)
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, malformed(n)
		}
		var err error
		switch {
		case f.IsMap():
			err = consumeMapEntry(raw, m, f, depth)
		case f.IsList():
			err = unmarshal(raw, m.Messages(f.Number).Push(), depth+1)
		default:
			err = unmarshal(raw, m.Message(f.Number), depth+1)
		}
		return n, err
	}

	if f.IsList() && typ == protowire.BytesType && f.Kind.IsScalar() {
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, malformed(n)
		}
		for len(raw) > 0 {
			v, k, err := consumeScalar(raw, f.Kind, wireType(f.Kind))
			if err != nil {
				return 0, err
			}
			if err := message.AppendAny(m, f.Number, v); err != nil {
				return 0, err
			}
			raw = raw[k:]
		}
		return n, nil
	}

	v, n, err := consumeScalar(b, f.Kind, typ)
	if err != nil {
		return 0, err
	}
	if f.IsList() {
		err = message.AppendAny(m, f.Number, v)
	} else {
		err = message.SetAny(m, f.Number, v)
	}
	return n, err
}

// consumeMapEntry decodes one key/value entry. A missing key or value
// takes the zero value of its kind; a repeated key replaces the entry.
func consumeMapEntry(b []byte, m message.Mut, f *message.FieldDesc, depth int) error {
	var key, val any
	var rawVal []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]
		var err error
		switch {
		case num == 1:
			key, n, err = consumeScalar(b, f.MapKey, typ)
		case num == 2 && f.Kind == message.MessageKind:
			if typ != protowire.BytesType {
				return fmt.Errorf("%w: %v for map value", ErrWireType, typ)
			}
			rawVal, n = protowire.ConsumeBytes(b)
		case num == 2:
			val, n, err = consumeScalar(b, f.Kind, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if err != nil {
			return err
		}
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]
	}
	if key == nil {
		key = zeroValue(f.MapKey)
	}

	if f.Kind == message.MessageKind {
		sub, err := message.MapInsertMessage(m, f.Number, key)
		if err != nil {
			return err
		}
		sub.Clear()
		return unmarshal(rawVal, sub, depth+1)
	}
	if val == nil {
		val = zeroValue(f.Kind)
	}
	return message.MapSetAny(m, f.Number, key, val)
}

// consumeScalar decodes one untagged non-message value of kind k.
func consumeScalar(b []byte, k message.Kind, typ protowire.Type) (any, int, error) {
	if typ != wireType(k) {
		return nil, 0, fmt.Errorf("%w: %v for %s", ErrWireType, typ, k)
	}
	switch typ {
	case protowire.VarintType:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, malformed(n)
		}
		switch k {
		case message.BoolKind:
			return protowire.DecodeBool(x), n, nil
		case message.EnumKind, message.Int32Kind:
			return int32(x), n, nil
		case message.Sint32Kind:
			return int32(protowire.DecodeZigZag(x & math.MaxUint32)), n, nil
		case message.Uint32Kind:
			return uint32(x), n, nil
		case message.Int64Kind:
			return int64(x), n, nil
		case message.Sint64Kind:
			return protowire.DecodeZigZag(x), n, nil
		}
		return x, n, nil
	case protowire.Fixed32Type:
		x, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, 0, malformed(n)
		}
		switch k {
		case message.Sfixed32Kind:
			return int32(x), n, nil
		case message.FloatKind:
			return math.Float32frombits(x), n, nil
		}
		return x, n, nil
	case protowire.Fixed64Type:
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, 0, malformed(n)
		}
		switch k {
		case message.Sfixed64Kind:
			return int64(x), n, nil
		case message.DoubleKind:
			return math.Float64frombits(x), n, nil
		}
		return x, n, nil
	}
	raw, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, malformed(n)
	}
	if k == message.StringKind {
		if !utf8.Valid(raw) {
			return nil, 0, fmt.Errorf("%w: invalid UTF-8 in string", ErrMalformed)
		}
		return string(raw), n, nil
	}
	return raw, n, nil
}

func zeroValue(k message.Kind) any {
	switch k {
	case message.BoolKind:
		return false
	case message.EnumKind, message.Int32Kind, message.Sint32Kind, message.Sfixed32Kind:
		return int32(0)
	case message.Uint32Kind, message.Fixed32Kind:
		return uint32(0)
	case message.Int64Kind, message.Sint64Kind, message.Sfixed64Kind:
		return int64(0)
	case message.Uint64Kind, message.Fixed64Kind:
		return uint64(0)
	case message.FloatKind:
		return float32(0)
	case message.DoubleKind:
		return float64(0)
	case message.StringKind:
		return ""
	}
	return []byte{}
}
