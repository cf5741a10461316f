// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package envfile reads the device environment file shared with the
// camera service.
//
// The file is a newline-delimited KEY=VALUE list (the format systemd's
// EnvironmentFile= consumes). It is hand-edited on devices in the field,
// so parsing is deliberately lenient: lines starting with "#" are
// comments, malformed lines are skipped rather than rejected, and a
// missing key reads as an empty value. A parse never fails; only I/O
// does.
package envfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Keys understood by the provisioning tool. The camera service reads the
// same file and may define more; unknown keys are preserved and ignored.
const (
	KeyDomain     = "CLOUDFLARE_DOMAIN"
	KeyAPIKey     = "CAMERA_API_KEY"
	KeyMongoURI   = "MONGO_URI"
	KeyServerPort = "SERVER_PORT"
)

// DefaultServerPort is used when SERVER_PORT is absent or malformed.
const DefaultServerPort = 5000

// Env is a parsed device environment file. The zero value is usable and
// reads as all-empty.
type Env struct {
	values  map[string]string
	keys    []string // first-occurrence order, for display
	skipped int
}

// Entry is one KEY=VALUE pair in file order.
type Entry struct {
	Key   string
	Value string
}

// Parse reads KEY=VALUE lines from r. Malformed lines (no "=") are
// counted and skipped. A later duplicate key overrides the value but
// keeps the original position.
func Parse(r io.Reader) *Env {
	env := &Env{values: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			env.skipped++
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			env.skipped++
			continue
		}
		if _, seen := env.values[key]; !seen {
			env.keys = append(env.keys, key)
		}
		env.values[key] = unquote(strings.TrimSpace(value))
	}

	return env
}

// Read parses the environment file at path. I/O errors propagate;
// content never causes an error.
func Read(path string) (*Env, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data)), nil
}

// ReadOrEmpty is Read, except a missing file yields an empty environment.
// Verification uses this: an unprovisioned device degrades every key to
// its default instead of aborting the report.
func ReadOrEmpty(path string) (*Env, error) {
	env, err := Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Env{values: make(map[string]string)}, nil
		}
		return nil, err
	}
	return env, nil
}

// Get returns the value for key, or "" when absent.
func (e *Env) Get(key string) string {
	if e == nil || e.values == nil {
		return ""
	}
	return e.values[key]
}

// Lookup returns the value for key and whether it was present.
func (e *Env) Lookup(key string) (string, bool) {
	if e == nil || e.values == nil {
		return "", false
	}
	value, ok := e.values[key]
	return value, ok
}

// Len returns the number of distinct keys.
func (e *Env) Len() int {
	if e == nil {
		return 0
	}
	return len(e.keys)
}

// SkippedLines returns how many malformed lines the parse dropped.
func (e *Env) SkippedLines() int {
	if e == nil {
		return 0
	}
	return e.skipped
}

// Domain returns CLOUDFLARE_DOMAIN, empty when the device has no public
// hostname (remote verification is skipped in that case).
func (e *Env) Domain() string { return e.Get(KeyDomain) }

// APIKey returns CAMERA_API_KEY.
func (e *Env) APIKey() string { return e.Get(KeyAPIKey) }

// MongoURI returns MONGO_URI.
func (e *Env) MongoURI() string { return e.Get(KeyMongoURI) }

// ServerPort returns SERVER_PORT as an integer, falling back to
// DefaultServerPort when the key is absent or not a valid port.
func (e *Env) ServerPort() int {
	raw := e.Get(KeyServerPort)
	if raw == "" {
		return DefaultServerPort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return DefaultServerPort
	}
	return port
}

// LocalBaseURL returns the camera service's loopback base URL,
// http://127.0.0.1:<port> with no trailing slash.
func (e *Env) LocalBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", e.ServerPort())
}

// Entries returns all pairs in file order.
func (e *Env) Entries() []Entry {
	if e == nil {
		return nil
	}
	entries := make([]Entry, 0, len(e.keys))
	for _, key := range e.keys {
		entries = append(entries, Entry{Key: key, Value: e.values[key]})
	}
	return entries
}

// Redacted returns all pairs in file order with secrets masked: the API
// key is replaced wholesale and any userinfo password inside MONGO_URI
// is blanked. Suitable for terminal display and diagnostic bundles.
func (e *Env) Redacted() []Entry {
	entries := e.Entries()
	for i, entry := range entries {
		switch entry.Key {
		case KeyAPIKey:
			if entry.Value != "" {
				entries[i].Value = "<redacted>"
			}
		case KeyMongoURI:
			entries[i].Value = redactURI(entry.Value)
		}
	}
	return entries
}

// redactURI masks the password component of a connection URI. A value
// that does not parse as a URL is masked wholesale rather than risk
// leaking an embedded credential.
func redactURI(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<redacted>"
	}
	if parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}

// unquote strips one layer of matching surrounding quotes, the way
// systemd's EnvironmentFile= does.
func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
