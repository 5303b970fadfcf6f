package serper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"landowebtool/internal/domain"
)

// envelopeStrategy extracts the payload from a decoded top-level object.
// ok is false when the strategy does not apply.
type envelopeStrategy func(obj map[string]json.RawMessage) (payload json.RawMessage, ok bool)

// memberStrategy unwraps a payload nested under key. A null member is absent.
func memberStrategy(key string) envelopeStrategy {
	return func(obj map[string]json.RawMessage) (json.RawMessage, bool) {
		v, ok := obj[key]
		if !ok || isNull(v) {
			return nil, false
		}
		return v, true
	}
}

// envelopeStrategies are tried in order; the raw payload is the fallback.
var envelopeStrategies = []envelopeStrategy{
	memberStrategy("data"),
	memberStrategy("result"),
}

// unwrapEnvelope resolves the API payload out of raw, which may be the payload
// itself or wrap it under "data" or "result".
func unwrapEnvelope(raw json.RawMessage) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: response is not a JSON object: %w", domain.ErrResponseFormat, err)
	}
	for _, strategy := range envelopeStrategies {
		if payload, ok := strategy(obj); ok {
			return payload, nil
		}
	}
	return raw, nil
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// orNull passes v through verbatim, mapping absent to JSON null.
func orNull(v json.RawMessage) json.RawMessage {
	if isNull(v) {
		return json.RawMessage("null")
	}
	return v
}
