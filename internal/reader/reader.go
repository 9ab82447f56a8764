// Package reader parses normalized-envelope files and raw partner dumps.
// Input is newline-delimited JSON or a single JSON array/object.
package reader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
)

// Document wraps one stored raw payload. Dump exports carry the submitting
// partner and capture timestamp next to the body; direct metric entries have
// only a body.
type Document struct {
	PublisherEmail string `json:"publisher_email"`
	Timestamp      string `json:"timestamp"`
	Body           any    `json:"body"`
}

// EachEnvelope streams a JSONL envelope file. A malformed line fails fast
// with the offending file:line; blank lines are allowed.
func EachEnvelope(path string, fn func(env *convertdomain.Envelope) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var env convertdomain.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return fmt.Errorf("%s:%d: invalid JSON: %w", path, lineNo, err)
		}
		if env.Fact == nil && env.DetailTable == "" {
			return fmt.Errorf("%s:%d: expected envelope object", path, lineNo)
		}
		if err := fn(&env); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// EachDocument streams raw dump input: JSONL when several lines each look
// like an object, otherwise one JSON array or object. Entries without a
// "body" wrapper are treated as direct metric entries.
func EachDocument(path string, fn func(doc Document) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if looksLikeJSONL(data) {
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			var obj any
			if err := json.Unmarshal(line, &obj); err != nil {
				return fmt.Errorf("%s:%d: invalid JSON: %w", path, lineNo, err)
			}
			if err := fn(asDocument(obj)); err != nil {
				return err
			}
		}
		return sc.Err()
	}

	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%s: invalid JSON: %w", path, err)
	}
	if items, ok := obj.([]any); ok {
		for _, item := range items {
			if err := fn(asDocument(item)); err != nil {
				return err
			}
		}
		return nil
	}
	return fn(asDocument(obj))
}

func looksLikeJSONL(data []byte) bool {
	lines := make([]string, 0, 5)
	for _, ln := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		lines = append(lines, ln)
		if len(lines) == 5 {
			break
		}
	}
	if len(lines) < 2 {
		return false
	}
	for _, ln := range lines {
		if !strings.HasPrefix(strings.TrimSpace(ln), "{") {
			return false
		}
	}
	return true
}

func asDocument(obj any) Document {
	m, ok := obj.(map[string]any)
	if !ok {
		return Document{Body: obj}
	}
	body, hasBody := m["body"]
	if !hasBody {
		return Document{Body: m}
	}
	doc := Document{Body: body}
	if v, ok := m["publisher_email"].(string); ok && v != "" {
		doc.PublisherEmail = v
	} else if v, ok := m["publisher"].(string); ok {
		doc.PublisherEmail = v
	}
	if v, ok := m["timestamp"].(string); ok && v != "" {
		doc.Timestamp = v
	} else if v, ok := m["ts"].(string); ok {
		doc.Timestamp = v
	}
	return doc
}
