// Package suite loads verification test cases from JSONL suite files.
//
// Each line is a complete chat-completion request body plus optional
// expected-behavior fields (check_type, expect_tool_call, expect_language)
// that are consumed here and stripped before anything reaches the provider.
package suite

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/evalops/deployverify/internal/models"
)

// maxLineBytes bounds a single suite line; request bodies with large tool
// schemas routinely exceed bufio's default.
const maxLineBytes = 16 * 1024 * 1024

// Load reads a JSONL suite file and returns prepared test cases in file
// order. Malformed lines are logged and skipped; an unreadable file is a
// configuration error and aborts the run.
func Load(path, model string, log logrus.FieldLogger) ([]*models.TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("suite: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var cases []*models.TestCase
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			log.WithField("line", lineNum).WithError(err).Warn("skipping malformed suite line")
			continue
		}

		tc, err := Build(lineNum, raw, model)
		if err != nil {
			log.WithField("line", lineNum).WithError(err).Warn("skipping unusable suite line")
			continue
		}
		cases = append(cases, tc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("suite: read %s: %w", path, err)
	}

	return cases, nil
}

// Build turns one raw suite record into an immutable TestCase. The prepared
// request is a copy: the raw record is never mutated.
func Build(index int, raw map[string]any, model string) (*models.TestCase, error) {
	prepared := prepareRequest(raw, model)

	id, err := HashRequest(prepared)
	if err != nil {
		return nil, err
	}

	return &models.TestCase{
		Index:          index,
		ID:             id,
		Raw:            raw,
		Prepared:       prepared,
		CheckTypes:     checkTypes(raw),
		ExpectToolCall: boolField(raw, "expect_tool_call"),
		ExpectLanguage: stringField(raw, "expect_language"),
	}, nil
}

// HashRequest computes the stable identifier for a prepared request.
// encoding/json marshals map keys in sorted order, so the digest is
// independent of insertion order.
func HashRequest(prepared map[string]any) (string, error) {
	data, err := json.Marshal(prepared)
	if err != nil {
		return "", fmt.Errorf("suite: hashing request: %w", err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// prepareRequest copies the raw payload, rewrites the legacy "_input" role to
// "system", drops the verification-only and streaming fields, and forces the
// target model.
func prepareRequest(raw map[string]any, model string) map[string]any {
	prepared := make(map[string]any, len(raw))
	for k, v := range raw {
		prepared[k] = v
	}
	delete(prepared, "check_type")
	delete(prepared, "expect_tool_call")
	delete(prepared, "expect_language")
	// Validators score completed responses, so streaming is forced off and
	// the provider returns the full message in one body.
	delete(prepared, "stream")
	delete(prepared, "stream_options")
	if model != "" {
		prepared["model"] = model
	}

	msgs, ok := prepared["messages"].([]any)
	if !ok {
		return prepared
	}
	rewritten := make([]any, len(msgs))
	for i, m := range msgs {
		msg, ok := m.(map[string]any)
		if !ok {
			rewritten[i] = m
			continue
		}
		if role, _ := msg["role"].(string); role == "_input" {
			copied := make(map[string]any, len(msg))
			for k, v := range msg {
				copied[k] = v
			}
			copied["role"] = "system"
			rewritten[i] = copied
			continue
		}
		rewritten[i] = msg
	}
	prepared["messages"] = rewritten
	return prepared
}

// checkTypes accepts either a JSON array of tags or a single string.
func checkTypes(raw map[string]any) []string {
	switch v := raw["check_type"].(type) {
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func boolField(raw map[string]any, key string) *bool {
	if v, ok := raw[key].(bool); ok {
		b := v
		return &b
	}
	return nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}
