package memsampler

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultMeminfoPath is where Linux exposes system memory counters.
const DefaultMeminfoPath = "/proc/meminfo"

// Reader queries system memory. Both calls are synchronous and side-effect free.
type Reader interface {
	Total() (uint64, error)
	Used() (uint64, error)
}

// MeminfoReader reads /proc/meminfo.
type MeminfoReader struct {
	Path string
}

// NewMeminfoReader returns a reader over DefaultMeminfoPath.
func NewMeminfoReader() MeminfoReader {
	return MeminfoReader{Path: DefaultMeminfoPath}
}

// Total returns MemTotal in bytes.
func (r MeminfoReader) Total() (uint64, error) {
	kv, err := r.read()
	if err != nil {
		return 0, err
	}
	total := parseKB(kv["MemTotal"])
	if total == 0 {
		return 0, fmt.Errorf("%s: MemTotal missing", r.path())
	}
	return total, nil
}

// Used returns MemTotal minus MemAvailable in bytes, falling back to MemFree
// on kernels that do not report MemAvailable.
func (r MeminfoReader) Used() (uint64, error) {
	kv, err := r.read()
	if err != nil {
		return 0, err
	}
	total := parseKB(kv["MemTotal"])
	if total == 0 {
		return 0, fmt.Errorf("%s: MemTotal missing", r.path())
	}
	free, ok := kv["MemAvailable"]
	if !ok {
		free = kv["MemFree"]
	}
	avail := parseKB(free)
	if avail > total {
		return 0, nil
	}
	return total - avail, nil
}

func (r MeminfoReader) path() string {
	if r.Path == "" {
		return DefaultMeminfoPath
	}
	return r.Path
}

func (r MeminfoReader) read() (map[string]string, error) {
	f, err := os.Open(r.path())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path(), err)
	}
	defer f.Close()

	kv := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		kv[strings.TrimSpace(line[:idx])] = strings.TrimSpace(line[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path(), err)
	}
	return kv, nil
}

// parseKB parses a meminfo value like "1234 kB" and returns bytes.
func parseKB(s string) uint64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "kB")
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v * 1024
}
