package relay

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxBodyBytes bounds the inbound body when no limit is configured.
const DefaultMaxBodyBytes = 10 << 20

// ParsedChatRequest is an inbound body that passed boundary validation.
// Only messages are kept; any model or sampling field sent by the caller
// is dropped here.
type ParsedChatRequest struct {
	// Messages holds each message object verbatim.
	Messages []json.RawMessage

	// Size is the number of body bytes read.
	Size int

	// Hash is the hex sha256 of the raw body.
	Hash string
}

// ParseChatRequest reads at most maxBytes from body and validates it.
// Every failure is a RelayError of kind InvalidInboundPayload.
func ParseChatRequest(body io.Reader, maxBytes int64) (*ParsedChatRequest, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	if body == nil {
		return nil, invalidPayload(errors.New("missing request body"))
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, invalidPayload(fmt.Errorf("failed to read request body: %w", err))
	}
	if int64(len(raw)) > maxBytes {
		return nil, invalidPayload(fmt.Errorf("request body exceeds %d bytes", maxBytes))
	}

	messages, err := decodeMessages(raw)
	if err != nil {
		return nil, invalidPayload(err)
	}

	sum := sha256.Sum256(raw)
	return &ParsedChatRequest{
		Messages: messages,
		Size:     len(raw),
		Hash:     hex.EncodeToString(sum[:]),
	}, nil
}

func decodeMessages(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty request body")
	}
	if trimmed[0] != '{' {
		return nil, errors.New("request body is not a JSON object")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	field, ok := envelope["messages"]
	if !ok {
		return nil, errors.New("messages is required")
	}
	field = bytes.TrimSpace(field)
	if bytes.Equal(field, []byte("null")) {
		return nil, errors.New("messages must not be null")
	}
	if len(field) == 0 || field[0] != '[' {
		return nil, errors.New("messages must be an array")
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(field, &messages); err != nil {
		return nil, fmt.Errorf("messages must be an array: %w", err)
	}
	for i, msg := range messages {
		msg = bytes.TrimSpace(msg)
		if len(msg) == 0 || msg[0] != '{' {
			return nil, fmt.Errorf("messages[%d] must be an object", i)
		}
	}
	return messages, nil
}

func invalidPayload(err error) *RelayError {
	return &RelayError{Kind: InvalidInboundPayload, Cause: err}
}
