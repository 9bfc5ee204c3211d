// Package wire encodes and decodes arena-backed messages in the protobuf
// binary format.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/pavanmanishd/protoarena/message"
)

var (
	ErrMalformed      = errors.New("wire: malformed input")
	ErrWireType       = errors.New("wire: unexpected wire type")
	ErrRecursionLimit = errors.New("wire: exceeded maximum nesting depth")
)

// maxDepth matches the default recursion limit of the protobuf runtime.
const maxDepth = 10000

// Marshal returns the wire encoding of v. Map entries are written in
// ascending key order, so the output is deterministic.
func Marshal(v message.View) ([]byte, error) {
	return AppendMessage(nil, v)
}

// AppendMessage appends the wire encoding of v to b.
func AppendMessage(b []byte, v message.View) ([]byte, error) {
	return appendMessage(b, v, 0)
}

func appendMessage(b []byte, v message.View, depth int) ([]byte, error) {
	if depth > maxDepth {
		return b, ErrRecursionLimit
	}
	var err error
	v.Range(func(f *message.FieldDesc) bool {
		b, err = appendField(b, v, f, depth)
		return err == nil
	})
	return b, err
}

func appendField(b []byte, v message.View, f *message.FieldDesc, depth int) ([]byte, error) {
	num := protowire.Number(f.Number)
	switch {
	case f.IsMap():
		return appendMap(b, v, f, depth)
	case f.IsList() && f.Kind == message.MessageKind:
		var err error
		for _, el := range v.Messages(f.Number).All() {
			if b, err = appendSubmessage(b, num, el, depth); err != nil {
				return b, err
			}
		}
		return b, nil
	case f.IsList():
		n := message.ListLen(v, f.Number)
		if f.Kind.IsScalar() && !f.Unpacked {
			var packed []byte
			for i := 0; i < n; i++ {
				packed = appendScalar(packed, f.Kind, message.ListAt(v, f.Number, i))
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			return protowire.AppendBytes(b, packed), nil
		}
		for i := 0; i < n; i++ {
			b = appendValue(b, num, f.Kind, message.ListAt(v, f.Number, i))
		}
		return b, nil
	case f.Kind == message.MessageKind:
		return appendSubmessage(b, num, v.Message(f.Number), depth)
	}
	return appendValue(b, num, f.Kind, message.GetAny(v, f.Number)), nil
}

func appendSubmessage(b []byte, num protowire.Number, v message.View, depth int) ([]byte, error) {
	sub, err := appendMessage(nil, v, depth+1)
	if err != nil {
		return b, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub), nil
}

func appendMap(b []byte, v message.View, f *message.FieldDesc, depth int) ([]byte, error) {
	num := protowire.Number(f.Number)
	var err error
	message.RangeMap(v, f.Number, func(k, val any) bool {
		entry := appendValue(nil, 1, f.MapKey, k)
		if sub, ok := val.(message.View); ok {
			entry, err = appendSubmessage(entry, 2, sub, depth)
			if err != nil {
				return false
			}
		} else {
			entry = appendValue(entry, 2, f.Kind, val)
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
		return true
	})
	return b, err
}

func appendValue(b []byte, num protowire.Number, k message.Kind, val any) []byte {
	b = protowire.AppendTag(b, num, wireType(k))
	return appendScalar(b, k, val)
}

// wireType is the wire type used for a single value of kind k.
func wireType(k message.Kind) protowire.Type {
	switch k {
	case message.Fixed32Kind, message.Sfixed32Kind, message.FloatKind:
		return protowire.Fixed32Type
	case message.Fixed64Kind, message.Sfixed64Kind, message.DoubleKind:
		return protowire.Fixed64Type
	case message.StringKind, message.BytesKind, message.MessageKind:
		return protowire.BytesType
	}
	return protowire.VarintType
}

// appendScalar appends the untagged encoding of a non-message value.
func appendScalar(b []byte, k message.Kind, val any) []byte {
	switch k {
	case message.BoolKind:
		return protowire.AppendVarint(b, protowire.EncodeBool(val.(bool)))
	case message.EnumKind, message.Int32Kind:
		return protowire.AppendVarint(b, uint64(int64(val.(int32))))
	case message.Sint32Kind:
		return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(val.(int32))))
	case message.Uint32Kind:
		return protowire.AppendVarint(b, uint64(val.(uint32)))
	case message.Int64Kind:
		return protowire.AppendVarint(b, uint64(val.(int64)))
	case message.Sint64Kind:
		return protowire.AppendVarint(b, protowire.EncodeZigZag(val.(int64)))
	case message.Uint64Kind:
		return protowire.AppendVarint(b, val.(uint64))
	case message.Fixed32Kind:
		return protowire.AppendFixed32(b, val.(uint32))
	case message.Sfixed32Kind:
		return protowire.AppendFixed32(b, uint32(val.(int32)))
	case message.FloatKind:
		return protowire.AppendFixed32(b, math.Float32bits(val.(float32)))
	case message.Fixed64Kind:
		return protowire.AppendFixed64(b, val.(uint64))
	case message.Sfixed64Kind:
		return protowire.AppendFixed64(b, uint64(val.(int64)))
	case message.DoubleKind:
		return protowire.AppendFixed64(b, math.Float64bits(val.(float64)))
	case message.StringKind:
		return protowire.AppendString(b, val.(string))
	case message.BytesKind:
		return protowire.AppendBytes(b, val.([]byte))
	}
	panic(fmt.Sprintf("wire: cannot encode kind %s", k))
}
