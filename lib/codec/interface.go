package codec

import "fmt"

// ICodec is the interface for all value codecs.
// A codec turns the values of a typed store into the opaque bytes the engine persists.
type ICodec interface {
	// Name returns the identifier of the codec (json, gob, raw)
	Name() string
	// Encode serializes v into a byte array
	// It returns the serialized byte array and an error if any
	Encode(v any) ([]byte, error)
	// Decode deserializes a byte array into v
	// It takes a byte array and a pointer as parameters
	// It returns an error if any
	Decode(b []byte, v any) error
}

// ByName returns the codec with the given name
func ByName(name string) (ICodec, error) {
	switch name {
	case "json":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	case "raw":
		return NewRawCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q. must be one of json, gob, raw", name)
	}
}
