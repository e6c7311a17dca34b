package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gowebpki/jcs"
)

// JSON encodes the payloads the indexer writes to the stream and the key-value store
//
//go:generate mockgen -source=json.go -destination=../mocks/json.go -package=mocks -mock_names=JSON=MockJSON
type JSON interface {
	// Marshal returns the RFC 8785 canonical encoding of v, so equal values
	// always produce identical bytes
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes exactly one JSON document into v
	Unmarshal(data []byte, v any) error
}

// ErrTrailingData is returned when a payload holds more than one document
var ErrTrailingData = errors.New("unexpected data after JSON document")

type canonicalJSON struct{}

// NewJSON returns the canonical codec
func NewJSON() JSON {
	return canonicalJSON{}
}

func (canonicalJSON) Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize: %w", err)
	}
	return canonical, nil
}

func (canonicalJSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}
