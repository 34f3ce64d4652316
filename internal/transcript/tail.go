// Package transcript provides bounded tail reads over per-session transcript
// resources, local files or remote byte streams, behind one Source interface
// so the watcher engine never branches on transport.
package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/petergaultney/lemonaid/internal/model"
)

const DefaultTailBytes int64 = 64 * 1024

// maxScanEntries bounds how far back LatestEntry looks inside one tail.
const maxScanEntries = 50

var (
	// ErrTransport marks a failed tail fetch (missing file, ssh failure).
	// Per-channel and non-fatal: the watcher skips the tick and retries.
	ErrTransport = errors.New("transcript unreadable")
	// ErrParse marks a malformed or partial entry. The entry is discarded.
	ErrParse = errors.New("transcript entry malformed")
)

// Source is the uniform "read last N bytes" capability.
type Source interface {
	FetchTail(ctx context.Context, maxBytes int64) ([]byte, error)
	// Ref describes the resource for logging.
	Ref() string
}

// LocalFile reads the tail of an on-disk transcript. When the file is larger
// than the requested tail the leading partial line is dropped.
type LocalFile struct {
	Path string
}

func (f LocalFile) Ref() string { return f.Path }

func (f LocalFile) FetchTail(_ context.Context, maxBytes int64) ([]byte, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransport, f.Path, err)
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrTransport, f.Path, err)
	}
	size := st.Size()
	readSize := size
	if maxBytes > 0 && readSize > maxBytes {
		readSize = maxBytes
	}
	if readSize < size {
		if _, err := fh.Seek(size-readSize, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: seek %s: %v", ErrTransport, f.Path, err)
		}
	}
	data, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTransport, f.Path, err)
	}
	if readSize < size {
		// The first line is almost certainly truncated mid-entry.
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}
	return data, nil
}

// CommandRunner executes a command; the ssh source uses it so tests can
// substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return runCommand(ctx, name, args...)
}

// SSHFile reads the tail of a transcript on a remote host via
// `ssh host tail -c N path`. BatchMode keeps a dead host from hanging on a
// password prompt; the caller bounds the whole fetch with its context.
type SSHFile struct {
	Host   string
	Path   string
	Runner CommandRunner
}

func (f SSHFile) Ref() string { return f.Host + ":" + f.Path }

func (f SSHFile) FetchTail(ctx context.Context, maxBytes int64) ([]byte, error) {
	if strings.ContainsAny(f.Path, "'\n") {
		return nil, fmt.Errorf("%w: unsafe remote path %q", ErrTransport, f.Path)
	}
	runner := f.Runner
	if runner == nil {
		runner = OSRunner{}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultTailBytes
	}
	cmd := fmt.Sprintf("tail -c %d '%s'", maxBytes, f.Path)
	out, err := runner.Run(ctx, "ssh", "-o", "BatchMode=yes", f.Host, cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: ssh %s: %v", ErrTransport, f.Ref(), err)
	}
	return out, nil
}

// EntryParser turns one raw transcript line into a normalized entry.
// Returning false means the line carries nothing classifiable (or failed to
// decode); the scan moves on to the previous line.
type EntryParser func(line []byte) (model.Entry, bool)

// LatestEntry scans a tail newest-first and returns the most recent entry
// the parser accepts. Undecodable trailing bytes and partial lines are
// skipped rather than failing the read.
func LatestEntry(tail []byte, parse EntryParser) (model.Entry, bool) {
	lines := splitLines(tail)
	scanned := 0
	for i := len(lines) - 1; i >= 0 && scanned < maxScanEntries; i-- {
		scanned++
		if entry, ok := parse(lines[i]); ok {
			return entry, true
		}
	}
	return model.Entry{}, false
}

func splitLines(tail []byte) [][]byte {
	raw := bytes.Split(tail, []byte("\n"))
	lines := make([][]byte, 0, len(raw))
	for _, l := range raw {
		l = bytes.TrimSpace(l)
		if len(l) > 0 {
			lines = append(lines, l)
		}
	}
	return lines
}

// ParseTimestamp parses an ISO-8601 entry timestamp ("Z" or offset form).
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrParse)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", ErrParse, s, err)
	}
	return t, nil
}
