package imagemin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/pithecene-io/shipyard/iox"
)

// Exclusions is a list of lines from an exclusion file. A content hash is
// excluded when any line contains it, so both bare hashes and md5sum-style
// "<hash>  <path>" lines work.
type Exclusions struct {
	lines []string
}

// ParseExclusions reads one entry per line, ignoring blank lines and
// lines starting with "#".
func ParseExclusions(r io.Reader) (*Exclusions, error) {
	ex := &Exclusions{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.ToLower(strings.TrimSpace(sc.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ex.lines = append(ex.lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read exclusions: %w", err)
	}
	return ex, nil
}

// LoadExclusions reads the exclusion file at path. A missing file yields
// an empty list and found=false; any other read error is returned.
func LoadExclusions(path string) (ex *Exclusions, found bool, err error) {
	if path == "" {
		return &Exclusions{}, false, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Exclusions{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open exclusions: %w", err)
	}
	defer iox.DiscardClose(f)

	ex, err = ParseExclusions(f)
	if err != nil {
		return nil, false, err
	}
	return ex, true, nil
}

// Len returns the number of entries.
func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return len(e.lines)
}

// Contains reports whether any entry contains the given hex hash.
func (e *Exclusions) Contains(hexHash string) bool {
	if e == nil || hexHash == "" {
		return false
	}
	hexHash = strings.ToLower(hexHash)
	for _, line := range e.lines {
		if strings.Contains(line, hexHash) {
			return true
		}
	}
	return false
}
