package graph

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is the flat value storage owned by a constant node. Data is stored
// little-endian, len(Data) == Len()*DType.Size().
type Buffer struct {
	DType DType
	Data  []byte
}

// Len returns the number of elements in the buffer.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	sz := b.DType.Size()
	if sz == 0 {
		return 0
	}
	return len(b.Data) / sz
}

// Clone returns a deep copy that shares no storage with b.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &Buffer{DType: b.DType, Data: data}
}

// Float32s decodes a Float32 buffer.
func (b *Buffer) Float32s() ([]float32, error) {
	if b == nil || b.DType != Float32 {
		return nil, b.typeErr(Float32)
	}
	out := make([]float32, b.Len())
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b.Data[i*4:]))
	}
	return out, nil
}

// Int64s widens any integer or bool buffer to int64.
func (b *Buffer) Int64s() ([]int64, error) {
	if b == nil {
		return nil, fmt.Errorf("graph: nil buffer")
	}
	out := make([]int64, b.Len())
	for i := range out {
		switch b.DType {
		case Uint8, Bool:
			out[i] = int64(b.Data[i])
		case Int16:
			out[i] = int64(int16(binary.LittleEndian.Uint16(b.Data[i*2:])))
		case Int32:
			out[i] = int64(int32(binary.LittleEndian.Uint32(b.Data[i*4:])))
		case Int64:
			out[i] = int64(binary.LittleEndian.Uint64(b.Data[i*8:]))
		default:
			return nil, fmt.Errorf("graph: buffer of %s is not integral", b.DType)
		}
	}
	return out, nil
}

func (b *Buffer) typeErr(want DType) error {
	if b == nil {
		return fmt.Errorf("graph: nil buffer, want %s", want)
	}
	return fmt.Errorf("graph: buffer holds %s, want %s", b.DType, want)
}

// Float32Buffer encodes values as a Float32 buffer.
func Float32Buffer(values []float32) *Buffer {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return &Buffer{DType: Float32, Data: data}
}

// IntBuffer encodes integer codes as dt, which must be an integer or bool type.
// Values are truncated to the element width; callers clamp first.
func IntBuffer(dt DType, values []int64) (*Buffer, error) {
	sz := dt.Size()
	if sz == 0 || dt == Float32 {
		return nil, fmt.Errorf("graph: cannot build integer buffer of %s", dt)
	}
	data := make([]byte, len(values)*sz)
	for i, v := range values {
		switch dt {
		case Uint8, Bool:
			data[i] = byte(v)
		case Int16:
			binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
		case Int32:
			binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(v)))
		case Int64:
			binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
		}
	}
	return &Buffer{DType: dt, Data: data}, nil
}
