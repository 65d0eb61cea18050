// Package jsonl reads and appends newline-delimited JSON event logs.
// Buffer sizing follows the teacher's JSONL reader (large lines are
// expected — task descriptions and comment bodies can be sizeable).
package jsonl

import (
	"bytes"
	"fmt"
	"os"
)

const maxLineBytes = 64 * 1024 * 1024

// ReadLines reads path and splits it into raw JSON lines.
//
// truncated reports whether the file's final line lacks a trailing
// newline — the known crash signature of a process killed mid-append
// (spec §4.9 check 2). When truncated is true, the incomplete final
// line is still returned as the last element of lines so callers can
// decide whether to parse, warn on, or discard it.
//
// A missing file is reported as os.IsNotExist via the returned error;
// callers that treat an absent log as empty should check for that.
func ReadLines(path string) (lines [][]byte, truncated bool, err error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path built from controlled lattice layout
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}

	endsWithNewline := data[len(data)-1] == '\n'
	raw := bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))

	for _, line := range raw {
		if len(line) == 0 {
			continue
		}
		if len(line) > maxLineBytes {
			return nil, false, fmt.Errorf("jsonl: line exceeds %d bytes", maxLineBytes)
		}
		lines = append(lines, line)
	}

	if !endsWithNewline && len(raw) > 0 && len(raw[len(raw)-1]) > 0 {
		truncated = true
	}

	return lines, truncated, nil
}

// AppendLine appends a single JSON line (without its own trailing
// newline) to path, creating it if necessary. The newline terminator is
// added here and the whole line is written in one Write call so a
// concurrent reader never observes a partial line except on a genuine
// crash mid-syscall (spec §4.2 JSONL append contract).
func AppendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304
	if err != nil {
		return fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("jsonl: append %s: %w", path, err)
	}
	return f.Sync()
}

// StripTruncatedFinalLine rewrites path with any incomplete trailing
// line removed. Nothing in this module calls it: `lattice doctor` has
// no fix mode and only reports a truncated final line as a warning.
func StripTruncatedFinalLine(path string) error {
	lines, truncated, err := ReadLines(path)
	if err != nil {
		return err
	}
	if !truncated {
		return nil
	}
	lines = lines[:len(lines)-1]

	var buf bytes.Buffer
	for _, l := range lines {
		buf.Write(l)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644) // #nosec G306
}
