// Package zapconsole renders zap entries as compact, separator-delimited console lines.
package zapconsole

import (
	"time"

	"go.uber.org/zap/zapcore"
)

const _sizeSliceArray = 8

var _sliceEncoderPool = NewPool(func() *sliceArrayEncoder {
	return &sliceArrayEncoder{
		elems: make([]any, 0, _sizeSliceArray),
	}
})

func getSliceEncoder() *sliceArrayEncoder {
	return _sliceEncoderPool.Get()
}

func putSliceEncoder(e *sliceArrayEncoder) {
	e.elems = e.elems[:0]
	_sliceEncoderPool.Put(e)
}

// ConsoleEncoder delegates field encoding to a JSON encoder and only owns the
// final line layout.
type ConsoleEncoder struct {
	zapcore.Encoder
	*zapcore.EncoderConfig
}

func NewConsoleEncoder(encConfig *zapcore.EncoderConfig) *ConsoleEncoder {
	return &ConsoleEncoder{
		Encoder:       zapcore.NewJSONEncoder(*encConfig),
		EncoderConfig: encConfig,
	}
}

func (enc *ConsoleEncoder) Clone() zapcore.Encoder {
	return &ConsoleEncoder{
		Encoder:       enc.Encoder.Clone(),
		EncoderConfig: enc.EncoderConfig,
	}
}

// sliceArrayEncoder collects the pieces of one console line.
type sliceArrayEncoder struct {
	elems []any
}

func (s *sliceArrayEncoder) AppendArray(v zapcore.ArrayMarshaler) error {
	enc := &sliceArrayEncoder{}
	err := v.MarshalLogArray(enc)
	s.elems = append(s.elems, enc.elems)

	return err
}

func (s *sliceArrayEncoder) AppendObject(v zapcore.ObjectMarshaler) error {
	m := zapcore.NewMapObjectEncoder()
	err := v.MarshalLogObject(m)
	s.elems = append(s.elems, m.Fields)

	return err
}

func (s *sliceArrayEncoder) AppendReflected(v any) error {
	s.elems = append(s.elems, v)
	return nil
}

func (s *sliceArrayEncoder) AppendBool(v bool)              { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendByteString(v []byte)      { s.elems = append(s.elems, string(v)) }
func (s *sliceArrayEncoder) AppendComplex128(v complex128)  { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendComplex64(v complex64)    { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendDuration(v time.Duration) { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendFloat64(v float64)        { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendFloat32(v float32)        { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendInt(v int)                { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendInt64(v int64)            { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendInt32(v int32)            { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendInt16(v int16)            { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendInt8(v int8)              { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendString(v string)          { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendTime(v time.Time)         { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendUint(v uint)              { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendUint64(v uint64)          { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendUint32(v uint32)          { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendUint16(v uint16)          { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendUint8(v uint8)            { s.elems = append(s.elems, v) }
func (s *sliceArrayEncoder) AppendUintptr(v uintptr)        { s.elems = append(s.elems, v) }
