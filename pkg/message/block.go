package message

import (
	"encoding/json"
	"slices"
	"strings"
)

// ContentBlock is a flat union representing one piece of content inside a
// message. The Type field discriminates which fields are meaningful.
type ContentBlock struct {
	Type     BlockType       `json:"type"`
	Text     string          `json:"text,omitempty"`
	URL      string          `json:"url,omitempty"`
	MIMEType string          `json:"mime_type,omitempty"`
	FileName string          `json:"file_name,omitempty"`
	Caption  string          `json:"caption,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewImageBlock creates an image content block.
func NewImageBlock(url, mimeType string) ContentBlock {
	return ContentBlock{Type: BlockImage, URL: url, MIMEType: mimeType}
}

// NewFileBlock creates a file content block.
func NewFileBlock(url, mimeType, fileName string) ContentBlock {
	return ContentBlock{Type: BlockFile, URL: url, MIMEType: mimeType, FileName: fileName}
}

// NewRawBlock creates a raw content block carrying opaque JSON data. The
// data is copied so later mutation of the caller's slice cannot reach the
// block.
func NewRawBlock(data json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockRaw, Data: slices.Clone(data)}
}

// textContent concatenates the text of all text blocks, separated by newlines.
func textContent(blocks []ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// hasAttachment reports whether any block carries a file or image.
func hasAttachment(blocks []ContentBlock) bool {
	return slices.ContainsFunc(blocks, func(b ContentBlock) bool {
		return b.Type == BlockImage || b.Type == BlockFile
	})
}
