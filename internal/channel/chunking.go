package channel

import (
	"strings"

	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

// ChunkConfig controls how outbound replies are split before delivery.
// Telegram caps messages at 4096 bytes, and command output (status
// dumps, task transcripts) regularly exceeds that.
type ChunkConfig struct {
	// MaxLength is the per-chunk byte budget. Zero or negative disables
	// splitting.
	MaxLength int

	// PreserveBlocks keeps a fenced code block (``` ... ```) in one
	// piece whenever the whole block fits inside MaxLength.
	PreserveBlocks bool
}

// SplitMessage turns one oversized outbound message into a sequence of
// messages that each respect cfg.MaxLength. Text is cut at line
// boundaries; non-text blocks ride on the first chunk. A message that
// already fits comes back untouched as a one-element slice.
func SplitMessage(msg message.OutboundMessage, cfg ChunkConfig) []message.OutboundMessage {
	if cfg.MaxLength <= 0 {
		return []message.OutboundMessage{msg}
	}

	text, attachments := partitionBlocks(msg.Blocks)
	if len(text) <= cfg.MaxLength {
		return []message.OutboundMessage{msg}
	}

	var out []message.OutboundMessage
	for i, piece := range splitText(text, cfg) {
		chunk := message.OutboundMessage{
			Channel:   msg.Channel,
			Chat:      msg.Chat,
			ThreadID:  msg.ThreadID,
			ReplyToID: msg.ReplyToID,
			Hints:     msg.Hints,
		}
		if i == 0 {
			chunk.Blocks = append(chunk.Blocks, attachments...)
		}
		chunk.Blocks = append(chunk.Blocks, message.NewTextBlock(piece))
		out = append(out, chunk)
	}
	return out
}

// partitionBlocks joins all text blocks into one string and collects the
// rest for reattachment to the first chunk.
func partitionBlocks(blocks []message.ContentBlock) (string, []message.ContentBlock) {
	var text []string
	var rest []message.ContentBlock
	for _, b := range blocks {
		if b.Type == message.BlockText {
			text = append(text, b.Text)
		} else {
			rest = append(rest, b)
		}
	}
	return strings.Join(text, "\n"), rest
}

// chunker accumulates lines into chunks of at most max bytes. With
// fences enabled it buffers each fenced block whole and splits it only
// when the block alone cannot fit in a chunk.
type chunker struct {
	max    int
	fences bool

	chunks []string
	buf    strings.Builder

	inBlock bool
	block   []string
}

func splitText(text string, cfg ChunkConfig) []string {
	c := &chunker{max: cfg.MaxLength, fences: cfg.PreserveBlocks}
	for _, line := range strings.Split(text, "\n") {
		c.feed(line)
	}
	c.finish()
	return c.chunks
}

func (c *chunker) feed(line string) {
	if c.fences && isFence(line) {
		if c.inBlock {
			c.block = append(c.block, line)
			c.placeBlock()
			c.inBlock = false
			c.block = nil
		} else {
			c.inBlock = true
			c.block = []string{line}
		}
		return
	}
	if c.inBlock {
		c.block = append(c.block, line)
		return
	}
	c.append(line)
}

// append adds one line to the running chunk, flushing first when it does
// not fit. A line longer than a whole chunk is sliced; the tail stays in
// the buffer so the lines after it can share its chunk.
func (c *chunker) append(line string) {
	if c.buf.Len()+len(line)+1 > c.max {
		c.flush()
	}
	if len(line)+1 > c.max {
		for len(line) > c.max {
			c.chunks = append(c.chunks, line[:c.max])
			line = line[c.max:]
		}
		if line == "" {
			return
		}
	}
	c.buf.WriteString(line)
	c.buf.WriteByte('\n')
}

// placeBlock lays a completed fenced block into the output: appended to
// the running chunk when both fit together, as the start of a fresh
// chunk when the block alone fits, and line by line when even that is
// too long.
func (c *chunker) placeBlock() {
	text := strings.Join(c.block, "\n")
	if c.buf.Len()+len(text) <= c.max {
		c.buf.WriteString(text)
		c.buf.WriteByte('\n')
		return
	}
	c.flush()
	if len(text) <= c.max {
		c.buf.WriteString(text)
		c.buf.WriteByte('\n')
		return
	}
	for _, line := range c.block {
		c.append(line)
	}
}

// finish closes an unterminated fence (model output is routinely cut
// off mid-block) and flushes the remainder.
func (c *chunker) finish() {
	if c.inBlock {
		c.placeBlock()
		c.inBlock = false
		c.block = nil
	}
	c.flush()
}

func (c *chunker) flush() {
	if c.buf.Len() == 0 {
		return
	}
	c.chunks = append(c.chunks, strings.TrimRight(c.buf.String(), "\n"))
	c.buf.Reset()
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}
