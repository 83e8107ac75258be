package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Canonical encoding keeps records byte-identical across devices.
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create handover CBOR encoder mode: %v", err))
	}

	// A peer running a newer record layout may add keys; unknown ones are
	// skipped. Duplicate keys are rejected.
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		MaxArrayElements:  maxRecordAses,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create handover CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to canonical CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalFirst decodes the first CBOR data item in data into v and
// returns the bytes that follow it. A truncated item yields
// io.ErrUnexpectedEOF.
func UnmarshalFirst(data []byte, v any) ([]byte, error) {
	return decMode.UnmarshalFirst(data, v)
}
