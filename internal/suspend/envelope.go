package suspend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
)

// compress wraps the serialized document in the outer gzip container.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing envelope: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// unwrapEnvelope decompresses and parses the outer container, returning the
// top-level document and its declared format version. Everything structural
// is a corruption error; version-set membership is checked by the caller
// against the decoder table.
func unwrapEnvelope(blob []byte) (map[string]any, int, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, 0, corruptedf("envelope", "not a gzip container: %v", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, 0, corruptedf("envelope", "truncated container: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, corruptedf("envelope", "invalid document: %v", err)
	}

	raw, ok := doc["version"]
	if !ok {
		return nil, 0, corruptedf("version", "missing required field")
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) {
		return nil, 0, corruptedf("version", "expected integer, got %v", raw)
	}
	return doc, int(f), nil
}
