package deploy

import (
	"io"
	"os"
	"strings"

	"github.com/ivyci/enginectl/pkg/logger"
)

// logForwarder tails the engine's deployment log while a handshake is pending
// and re-logs each complete line at the level the engine gave it.
type logForwarder struct {
	path    string
	log     logger.Logger
	offset  int64
	partial string
}

func newLogForwarder(path string, log logger.Logger) *logForwarder {
	return &logForwarder{path: path, log: log}
}

// poll forwards lines appended since the last call. Read errors are ignored;
// the log is advisory and the next tick retries.
func (f *logForwarder) poll() {
	file, err := os.Open(f.path)
	if err != nil {
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return
	}
	if info.Size() < f.offset {
		// recreated by the engine
		f.offset = 0
		f.partial = ""
	}
	if info.Size() == f.offset {
		return
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return
	}
	f.offset += int64(len(data))

	chunk := f.partial + string(data)
	lines := strings.Split(chunk, "\n")
	f.partial = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		forwardEngineLine(f.log, line)
	}
}

// flush forwards whatever is left, including an unterminated last line
func (f *logForwarder) flush() {
	f.poll()
	if f.partial != "" {
		forwardEngineLine(f.log, f.partial)
		f.partial = ""
	}
}

func forwardEngineLine(log logger.Logger, line string) {
	line = strings.TrimRight(line, "\r")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "ERROR"), strings.HasPrefix(upper, "FATAL"):
		log.Error(line)
	case strings.HasPrefix(upper, "WARN"):
		log.Warn(line)
	case strings.HasPrefix(upper, "DEBUG"), strings.HasPrefix(upper, "TRACE"):
		log.Debug(line)
	default:
		log.Info(line)
	}
}
