package trace

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/moffa90/go-opc/opc"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR decoder mode: %v", err))
	}
}

// EncodeFrame encodes a frame as one CBOR data item.
func EncodeFrame(f opc.Frame) ([]byte, error) {
	return encMode.Marshal(f)
}

// DecodeFrame decodes one CBOR data item into a frame.
func DecodeFrame(data []byte) (opc.Frame, error) {
	var f opc.Frame
	if err := decMode.Unmarshal(data, &f); err != nil {
		return opc.Frame{}, err
	}
	return f, nil
}

// NewEncoder returns a CBOR encoder using the trace encoding options. The
// opcread CLI uses it for -format cbor.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder using the trace decoding options.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
