package infra

import (
	"io"

	"github.com/bytedance/sonic"
)

var jsonConfig = sonic.ConfigStd

func MarshalJSON(v any) ([]byte, error) {
	return jsonConfig.Marshal(v)
}

func UnmarshalJSON(data []byte, v any) error {
	return jsonConfig.Unmarshal(data, v)
}

func EncodeJSON(w io.Writer, v any) error {
	return jsonConfig.NewEncoder(w).Encode(v)
}

func DecodeJSON(r io.Reader, v any) error {
	return jsonConfig.NewDecoder(r).Decode(v)
}
