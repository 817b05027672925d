package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tryblock/internal/ir"
)

// marshalLogs converts test log lines to canonical JSON TEXT for storage.
func marshalLogs(logs []string) (string, error) {
	if logs == nil {
		logs = []string{}
	}
	data, err := ir.MarshalCanonical(logs)
	if err != nil {
		return "", fmt.Errorf("marshal logs: %w", err)
	}
	return string(data), nil
}

// unmarshalLogs parses stored log lines. An empty array yields nil.
func unmarshalLogs(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var logs []string
	if err := json.Unmarshal([]byte(data), &logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	return logs, nil
}
