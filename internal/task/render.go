package task

import (
	"fmt"
	"time"
)

// FileName builds the on-disk task file name for a channel submission:
// <channel>_<yyyymmdd>_<hhmmss>_<micro>.md. The microsecond suffix keeps
// names unique when tasks arrive in the same second.
func FileName(channel string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%06d.md", channel, now.Format("20060102_150405"), now.Nanosecond()/1000)
}

// RenderMarkdown produces the task file body the agent picks up.
func RenderMarkdown(t *Task) string {
	return fmt.Sprintf(`# Task from %s

**Created:** %s
**Status:** pending

## Description
%s

## Instructions
Execute autonomously. Report progress to status file.
`, titleChannel(t.Channel), t.CreatedAt.Format(time.RFC3339), t.Description)
}

// RenderStatusNotice produces the human-readable status line announcing a
// new task, shown both in the status file and the channel reply.
func RenderStatusNotice(t *Task, now time.Time) string {
	return fmt.Sprintf("🟢 New Task\n\nTask: %s\nStarted: %s\nFile: %s",
		t.Description, now.Format("3:04 PM"), t.FileName)
}

func titleChannel(channel string) string {
	switch channel {
	case "", "telegram":
		return "Telegram"
	}
	// Capitalize ASCII channel names; non-ASCII stays as-is.
	b := []byte(channel)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
