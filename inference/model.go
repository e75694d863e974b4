package inference

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidModel indicates the bytes are not a usable ONNX model.
var ErrInvalidModel = errors.New("inference: invalid ONNX model")

// Field numbers from onnx.proto.
const (
	modelGraphField    protowire.Number = 7
	modelMetadataField protowire.Number = 14

	graphInitializerField protowire.Number = 5
	graphInputField       protowire.Number = 11
	graphOutputField      protowire.Number = 12

	tensorNameField protowire.Number = 8

	valueInfoNameField protowire.Number = 1
	valueInfoTypeField protowire.Number = 2

	typeTensorField      protowire.Number = 1
	tensorTypeShapeField protowire.Number = 2
	shapeDimField        protowire.Number = 1
	dimValueField        protowire.Number = 1

	entryKeyField   protowire.Number = 1
	entryValueField protowire.Number = 2
)

// Model is an ONNX model held in memory along with the parts of its graph the
// splitter needs to know before running it.
type Model struct {
	// Data is the serialized ModelProto.
	Data []byte
	// Metadata holds the model's metadata_props.
	Metadata map[string]string
	// Inputs lists graph inputs that are not initializers.
	Inputs []string
	// Outputs lists graph outputs.
	Outputs []string
	// OutputDims is the shape of the first output; -1 marks a dynamic dim.
	OutputDims []int64
}

// LoadModel reads and inspects an ONNX model file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	return ParseModel(data)
}

// ParseModel inspects a serialized ONNX ModelProto without decoding weights.
func ParseModel(data []byte) (*Model, error) {
	m := &Model{Data: data, Metadata: make(map[string]string)}
	var graph []byte

	err := eachField(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == modelGraphField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			graph = v
			return n, nil
		case num == modelMetadataField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			key, value, err := parseEntry(v)
			if err != nil {
				return 0, err
			}
			m.Metadata[key] = value
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	if graph == nil {
		return nil, fmt.Errorf("%w: no graph", ErrInvalidModel)
	}
	if err := m.parseGraph(graph); err != nil {
		return nil, fmt.Errorf("%w: graph: %w", ErrInvalidModel, err)
	}
	if len(m.Inputs) == 0 || len(m.Outputs) == 0 {
		return nil, fmt.Errorf("%w: graph has %d inputs and %d outputs", ErrInvalidModel, len(m.Inputs), len(m.Outputs))
	}
	return m, nil
}

// Channels returns the static size of the last output dim, or 0 when it is
// dynamic or unknown.
func (m *Model) Channels() int {
	if len(m.OutputDims) == 0 {
		return 0
	}
	last := m.OutputDims[len(m.OutputDims)-1]
	if last < 0 {
		return 0
	}
	return int(last)
}

func (m *Model) parseGraph(graph []byte) error {
	var inputs []string
	initializers := make(map[string]bool)

	err := eachField(graph, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case graphInitializerField:
			name, err := stringField(v, tensorNameField)
			if err != nil {
				return 0, err
			}
			initializers[name] = true
		case graphInputField:
			name, _, err := parseValueInfo(v)
			if err != nil {
				return 0, err
			}
			inputs = append(inputs, name)
		case graphOutputField:
			name, dims, err := parseValueInfo(v)
			if err != nil {
				return 0, err
			}
			if len(m.Outputs) == 0 {
				m.OutputDims = dims
			}
			m.Outputs = append(m.Outputs, name)
		}
		return n, nil
	})
	if err != nil {
		return err
	}

	for _, name := range inputs {
		if !initializers[name] {
			m.Inputs = append(m.Inputs, name)
		}
	}
	return nil
}

func parseValueInfo(b []byte) (name string, dims []int64, err error) {
	err = eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case valueInfoNameField:
			name = string(v)
		case valueInfoTypeField:
			d, err := parseTensorShape(v)
			if err != nil {
				return 0, err
			}
			dims = d
		}
		return n, nil
	})
	return name, dims, err
}

// parseTensorShape walks TypeProto.tensor_type.shape.dim.
func parseTensorShape(typeProto []byte) ([]int64, error) {
	tensor, err := bytesField(typeProto, typeTensorField)
	if err != nil || tensor == nil {
		return nil, err
	}
	shape, err := bytesField(tensor, tensorTypeShapeField)
	if err != nil || shape == nil {
		return nil, err
	}

	var dims []int64
	err = eachField(shape, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != shapeDimField || typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		dim := int64(-1)
		err := eachField(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == dimValueField && typ == protowire.VarintType {
				x, n := protowire.ConsumeVarint(b)
				dim = int64(x)
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
		if err != nil {
			return 0, err
		}
		dims = append(dims, dim)
		return n, nil
	})
	return dims, err
}

func parseEntry(b []byte) (key, value string, err error) {
	err = eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		switch num {
		case entryKeyField:
			key = string(v)
		case entryValueField:
			value = string(v)
		}
		return n, nil
	})
	return key, value, err
}

func stringField(b []byte, field protowire.Number) (string, error) {
	v, err := bytesField(b, field)
	return string(v), err
}

// bytesField returns the last occurrence of a length-delimited field, or nil.
func bytesField(b []byte, field protowire.Number) ([]byte, error) {
	var out []byte
	err := eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == field && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			out = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return out, err
}

// eachField calls fn for every field in a serialized message. fn receives the
// bytes after the tag and returns how many of them the field value used, or a
// negative protowire error code.
func eachField(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
