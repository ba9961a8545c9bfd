package postgres

import (
	"encoding/json"
	"fmt"
)

// marshalAnyPayload keeps nil and empty maps distinct: nil is stored as JSON
// null, empty as {}.
func marshalAnyPayload(payload map[string]any) (string, error) {
	if payload == nil {
		return "null", nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode jsonb payload: %w", err)
	}
	return string(raw), nil
}

// decodeAnyPayload is lenient: a row with unreadable JSON still loads, with a
// nil payload.
func decodeAnyPayload(raw []byte) map[string]any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
