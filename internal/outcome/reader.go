package outcome

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Filter narrows a Read call. Limit <= 0 means unlimited.
type Filter struct {
	Since  time.Time
	EdgeID string
	Limit  int
}

// Read scans every outcomes-*.jsonl segment in dir in filename order,
// parsing each line strictly. Invalid lines are skipped with a warning,
// never abort the read.
func Read(dir string, filter Filter) ([]Outcome, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "outcomes-*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var out []Outcome
	for _, path := range matches {
		lines, err := readSegment(path)
		if err != nil {
			return nil, err
		}
		for _, o := range lines {
			if !filter.Since.IsZero() && time.UnixMilli(o.ExitTimestamp).Before(filter.Since) {
				continue
			}
			if filter.EdgeID != "" && o.EdgeID != filter.EdgeID {
				continue
			}
			out = append(out, o)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func readSegment(path string) ([]Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Outcome
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var o Outcome
		if err := json.Unmarshal(line, &o); err != nil {
			log.Warn().Str("file", path).Int("line", lineNo).Err(err).Msg("skipping invalid outcome line")
			continue
		}
		out = append(out, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
