package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Capture buffers JSON log output, for inspection by tests.
type Capture struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// NewCapture returns a JSON Logger writing to a new Capture.
func NewCapture(level logiface.Level) (*Logger, *Capture) {
	c := new(Capture)
	return New(c, level, false), c
}

func (x *Capture) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

// Entries decodes every line written so far. Lines that are not valid JSON
// objects are skipped.
func (x *Capture) Entries() []map[string]any {
	x.mu.Lock()
	b := bytes.Clone(x.buf.Bytes())
	x.mu.Unlock()
	var entries []map[string]any
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		var m map[string]any
		if json.Unmarshal(s.Bytes(), &m) == nil {
			entries = append(entries, m)
		}
	}
	return entries
}

// Messages returns the message of every entry at the given zerolog level
// name (e.g. "warn"), or of every entry, if level is empty.
func (x *Capture) Messages(level string) []string {
	var msgs []string
	for _, e := range x.Entries() {
		if level != `` && e[`level`] != level {
			continue
		}
		msg, _ := e[`message`].(string)
		msgs = append(msgs, msg)
	}
	return msgs
}

// EntryError returns the error logged with an entry, under either of the
// keys izerolog and logiface use for it.
func EntryError(entry map[string]any) string {
	for _, k := range [...]string{zerolog.ErrorFieldName, `err`} {
		if s, ok := entry[k].(string); ok {
			return s
		}
	}
	return ``
}
