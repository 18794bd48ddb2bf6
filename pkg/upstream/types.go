package upstream

import (
	"encoding/json"
	"time"
)

// Request is the body POSTed to the chat-completion endpoint.
//
// Messages are carried as raw JSON so the caller's role/content pairs (and
// any extra fields on them) reach the upstream byte for byte.
type Request struct {
	Model            string            `json:"model"`
	Messages         []json.RawMessage `json:"messages"`
	MaxTokens        int               `json:"max_tokens"`
	Temperature      float64           `json:"temperature"`
	FrequencyPenalty float64           `json:"frequency_penalty"`
}

// Response is a successfully read upstream reply.
type Response struct {
	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Body is the compact re-serialization of the upstream JSON value.
	Body json.RawMessage

	// Latency is the time from sending the request to reading the whole body.
	Latency time.Duration
}
