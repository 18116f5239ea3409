package codec

import (
	"fmt"
)

// NewRawCodec creates a codec that stores byte slices and strings as they are
func NewRawCodec() ICodec {
	return &rawCodecImpl{}
}

// rawCodecImpl implements the ICodec interface without any encoding.
// It only accepts []byte and string values (or pointers to them for Decode).
type rawCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (r rawCodecImpl) Name() string {
	return "raw"
}

func (r rawCodecImpl) Encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return append([]byte{}, val...), nil
	case *[]byte:
		return append([]byte{}, (*val)...), nil
	case string:
		return []byte(val), nil
	case *string:
		return []byte(*val), nil
	default:
		return nil, fmt.Errorf("raw codec cannot encode %T", v)
	}
}

func (r rawCodecImpl) Decode(b []byte, v any) error {
	switch val := v.(type) {
	case *[]byte:
		*val = append([]byte{}, b...)
	case *string:
		*val = string(b)
	default:
		return fmt.Errorf("raw codec cannot decode into %T", v)
	}
	return nil
}
