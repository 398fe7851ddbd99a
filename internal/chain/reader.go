// Package chain turns crawled revision files into per-document revision chains
package chain

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/logger"
)

const maxLineBytes = 64 << 20

// ReadJSONL decodes one JSON object per line. Blank lines are ignored and undecodable lines are logged and skipped.
// An empty file yields no records and no error.
func ReadJSONL[T any](path string, log *logger.Logger) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "open %s", path)
	}
	defer f.Close()

	var out []T
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256<<10), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			log.Warn().Err(err).Str("file", path).Int("line", lineNo).Msg("skipping undecodable line")
			continue
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return out, perr.Wrapf(err, perr.ErrorCodeIO, "read %s", path)
	}
	return out, nil
}
