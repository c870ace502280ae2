package storage

import (
	"bytes"
	"encoding/json"
	"io"
)

// saveJSON saves data as JSON
func saveJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	return encoder.Encode(data)
}

// loadJSON loads data from JSON
func loadJSON(r io.Reader, data any) error {
	decoder := json.NewDecoder(r)
	return decoder.Decode(data)
}

// encodeColumn renders data as a JSON text column
func encodeColumn(data any) (string, error) {
	var buf bytes.Buffer
	if err := saveJSON(&buf, data); err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(buf.Bytes())), nil
}

// decodeColumn parses a JSON text column; empty columns leave data untouched
func decodeColumn(column string, data any) error {
	if column == "" {
		return nil
	}
	return loadJSON(bytes.NewReader([]byte(column)), data)
}
