package telegram

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tg "github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/Everest18/claude-code-telegram-control/pkg/message"
)

const fileIDPrefix = "tg://file_id/"

// fileResolver is the subset of the Bot API client needed to turn
// tg://file_id/ references into download URLs.
type fileResolver interface {
	GetFile(ctx context.Context, fileID string) (*tg.File, error)
	FileURL(filePath string) string
}

// resolveMediaURLs replaces tg://file_id/ references in image and file
// blocks with real HTTP download URLs via getFile, so the agent (or the
// CI workflow) can fetch the attachment without Bot API access. Blocks
// with non-Telegram URLs are left untouched.
func resolveMediaURLs(ctx context.Context, client fileResolver, msg *message.InboundMessage) error {
	for i := range msg.Blocks {
		if err := resolveBlock(ctx, client, &msg.Blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

func resolveBlock(ctx context.Context, client fileResolver, block *message.ContentBlock) error {
	if block.Type != message.BlockImage && block.Type != message.BlockFile {
		return nil
	}
	fileID, ok := strings.CutPrefix(block.URL, fileIDPrefix)
	if !ok {
		return nil
	}

	file, err := client.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("telegram: resolve file %s: %w", fileID, err)
	}

	block.URL = client.FileURL(file.FilePath)
	if block.MIMEType == "" && block.Type == message.BlockImage {
		block.MIMEType = guessImageMIME(file.FilePath)
	}
	return nil
}

var imageMIMEs = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// guessImageMIME infers a MIME type from the file extension. Unknown
// extensions map to "".
func guessImageMIME(filePath string) string {
	return imageMIMEs[strings.ToLower(filepath.Ext(filePath))]
}
