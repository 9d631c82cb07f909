package util

import (
	"encoding/json"
)

type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

type JsonEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(JsonEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{}
}

func (encdec *JsonEncDec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (encdec *JsonEncDec[T]) Decode(data []byte) (*T, error) {
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DecodeAll decodes every value, ignoring empty strings left by missing keys.
func DecodeAll[T any](encdec EncoderDecoder[T], values []string) ([]*T, error) {
	out := make([]*T, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		item, err := encdec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
