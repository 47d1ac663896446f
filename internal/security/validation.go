package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Bounds applied to raw inbound payloads (webhook bodies, long-poll
// updates) before any decoding happens.
const (
	DefaultMaxMessageSize = 1 << 20 // 1 MiB
	DefaultMaxJSONDepth   = 32
)

var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrJSONTooDeep     = errors.New("JSON nested too deeply")
	ErrInvalidJSON     = errors.New("malformed JSON")
)

// ValidateMessageSize rejects payloads larger than limit bytes. A
// limit of zero or less falls back to DefaultMaxMessageSize. The Bot
// API caps message text well below this, so anything bigger is either
// a misbehaving client or an oversized attachment payload.
func ValidateMessageSize(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxMessageSize
	}
	if len(data) <= limit {
		return nil
	}
	return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(data), limit)
}

// ValidateJSONDepth walks the payload's tokens and rejects nesting
// deeper than limit levels, without materializing the document. A
// limit of zero or less falls back to DefaultMaxJSONDepth. Non-JSON
// payloads fail with ErrInvalidJSON; empty payloads pass.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case '}', ']':
			depth--
		}
	}
}
