package kastore

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Type identifies the element type of a stored array.
type Type uint8

const (
	Int8 Type = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var typeNames = [...]string{"int8", "uint8", "int16", "uint16", "int32", "uint32", "int64", "uint64", "float32", "float64"}

var typeSizes = [...]int{1, 1, 2, 2, 4, 4, 8, 8, 4, 8}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Size returns the encoded width of one element in bytes, or 0 for an
// unknown type.
func (t Type) Size() int {
	if int(t) < len(typeSizes) {
		return typeSizes[t]
	}
	return 0
}

// Element is the set of Go types that can be stored as array elements.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// TypeOf returns the kastore type for element type T.
func TypeOf[T Element]() Type {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

// item is one stored array in its encoded (little-endian) form.
type item struct {
	data []byte
	n    int
	typ  Type
}

func encode[T Element](values []T) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(values) * TypeOf[T]().Size())
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode[T Element](it item) ([]T, error) {
	size := TypeOf[T]().Size()
	if it.n < 0 || len(it.data)%size != 0 || len(it.data)/size != it.n {
		return nil, fmt.Errorf("%d bytes for %d elements", len(it.data), it.n)
	}
	out := make([]T, it.n)
	if it.n == 0 {
		return out, nil
	}
	if err := binary.Read(bytes.NewReader(it.data), binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Put stores values under key. The store must be open for writing and key
// must not already be present.
func Put[T Element](s *Store, key string, values []T) error {
	if err := s.checkWritable("put", key); err != nil {
		return err
	}
	data, err := encode(values)
	if err != nil {
		return kasError(ErrGeneric, "put", key, err)
	}
	s.items[key] = item{typ: TypeOf[T](), n: len(values), data: data}
	return nil
}

// Get returns the array stored under key. The stored type must match T
// exactly.
func Get[T Element](s *Store, key string) ([]T, error) {
	it, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	if want := TypeOf[T](); it.typ != want {
		return nil, kasError(ErrTypeMismatch, "get", key,
			fmt.Errorf("stored %s, requested %s", it.typ, want))
	}
	out, err := decode[T](it)
	if err != nil {
		return nil, kasError(ErrBadFileFormat, "get", key, err)
	}
	return out, nil
}

// PutString stores s as a uint8 array.
func PutString(s *Store, key, value string) error {
	return Put(s, key, []byte(value))
}

// GetString returns the uint8 array stored under key as a string.
func GetString(s *Store, key string) (string, error) {
	b, err := Get[uint8](s, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
