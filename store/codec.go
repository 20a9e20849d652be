package store

import (
	"fmt"
	"kuro/contract"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode serializes a document as a protobuf Struct.
// Numbers come back as float64, which holds millisecond timestamps exactly.
func Encode(doc contract.Document) ([]byte, error) {
	s, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return proto.Marshal(s)
}

func Decode(data []byte) (contract.Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return s.AsMap(), nil
}

// resolveServerValues replaces every top level server timestamp placeholder
// by now in milliseconds. The input document is left untouched.
func resolveServerValues(doc contract.Document, nowMillis int64) contract.Document {
	resolved := make(contract.Document, len(doc))
	for field, value := range doc {
		if isServerTimestamp(value) {
			resolved[field] = nowMillis
			continue
		}
		resolved[field] = value
	}
	return resolved
}

func isServerTimestamp(value any) bool {
	placeholder, ok := value.(map[string]any)
	if !ok {
		return false
	}
	kind, ok := placeholder[contract.ServerTimestampField]
	return ok && kind == "timestamp"
}
