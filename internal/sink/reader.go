package sink

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"github.com/quillside/logdeck/internal/model"
)

// Session is the parsed content of one sink file.
type Session struct {
	ID      string
	Started time.Time
	Records []model.LogRecord
}

// Reader loads sink files back into records, transparently decompressing
// ".zst" archives.
type Reader struct {
	dec    *zstd.Decoder
	parser fastjson.ParserPool
}

// NewReader creates a Reader.
func NewReader() (*Reader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return &Reader{dec: dec}, nil
}

// ReadFile parses one sink file or archive. Unparseable lines are skipped,
// not fatal: a crash mid-write may truncate the last line.
func (r *Reader) ReadFile(path string) (*Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sink: read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".zst") {
		raw, err = r.dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("sink: decompress %s: %w", path, err)
		}
	}
	return r.parse(raw)
}

func (r *Reader) parse(raw []byte) (*Session, error) {
	p := r.parser.Get()
	defer r.parser.Put(p)

	session := &Session{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lineBytes := bytes.TrimSpace(sc.Bytes())
		if len(lineBytes) == 0 {
			continue
		}
		v, err := p.ParseBytes(lineBytes)
		if err != nil {
			continue
		}

		if sid := v.GetStringBytes("session"); len(sid) > 0 {
			session.ID = string(sid)
			session.Started = time.Unix(0, v.GetInt64("started"))
			continue
		}

		rec := model.LogRecord{
			ID:          v.GetUint64("id"),
			Timestamp:   time.Unix(0, v.GetInt64("ts")),
			Severity:    model.ParseSeverity(string(v.GetStringBytes("severity"))),
			Source:      string(v.GetStringBytes("source")),
			Message:     string(v.GetStringBytes("message")),
			StackTrace:  string(v.GetStringBytes("stacktrace")),
			RepeatCount: v.GetInt("repeat"),
		}
		if rec.RepeatCount < 1 {
			rec.RepeatCount = 1
		}
		session.Records = append(session.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return session, fmt.Errorf("sink: scan: %w", err)
	}
	return session, nil
}
