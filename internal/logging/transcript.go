package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"voicechat/internal/domain"
)

const transcriptFile = "transcript_log.txt"

// TranscriptFile appends every rendered message to a tab separated log.
type TranscriptFile struct {
	mu   sync.Mutex
	file *os.File
}

func OpenTranscript(dir string) (*TranscriptFile, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Join(dir, transcriptFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript log: %w", err)
	}
	return &TranscriptFile{file: file}, nil
}

func (t *TranscriptFile) Append(sessionID string, msg domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return os.ErrClosed
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
		msg.At.Format(timeFormat),
		sessionID,
		msg.Speaker,
		flatten(msg.Text),
	)
	if _, err := t.file.WriteString(line); err != nil {
		return fmt.Errorf("write transcript log: %w", err)
	}
	return nil
}

func (t *TranscriptFile) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
