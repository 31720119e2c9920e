package wire

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

const headerLine = "NATS/1.0"

// parseHeaderBlock parses a header block: a fixed first line "NATS/1.0[
// <status> [<reason>]]", CRLF, then "Key: Value" lines, CRLF-terminated,
// ending at a blank line.
func parseHeaderBlock(block []byte) (*Header, StatusCode, string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(block))
	scanner.Buffer(make([]byte, 0, 1024), 64*1024)

	if !scanner.Scan() {
		return nil, StatusNone, "", protoErr("empty header block")
	}
	first := scanner.Text()
	if !strings.HasPrefix(first, headerLine) {
		return nil, StatusNone, "", protoErr("header block missing %q prefix", headerLine)
	}

	status := StatusNone
	reason := ""
	remainder := strings.TrimSpace(strings.TrimPrefix(first, headerLine))
	if remainder != "" {
		parts := strings.SplitN(remainder, " ", 2)
		code, err := strconv.Atoi(parts[0])
		if err != nil || code < 100 || code > 599 {
			return nil, StatusNone, "", protoErr("malformed status code %q", parts[0])
		}
		status = StatusCode(code)
		if len(parts) == 2 {
			reason = strings.TrimSpace(parts[1])
		}
	}

	h := NewHeader()
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		i := strings.Index(line, ":")
		if i < 0 {
			return nil, StatusNone, "", protoErr("malformed header line %q", line)
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		h.Add(key, val)
	}

	return h, status, reason, nil
}

// encodeHeaderBlock formats a Header (and optional status line) back into
// wire form. Returns the full block including the trailing blank line.
func encodeHeaderBlock(h *Header, status StatusCode, reason string) []byte {
	var buf bytes.Buffer
	buf.WriteString(headerLine)
	if status != StatusNone {
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(int(status)))
		if reason != "" {
			buf.WriteByte(' ')
			buf.WriteString(reason)
		}
	}
	buf.WriteString("\r\n")
	if h != nil {
		for _, k := range h.Keys() {
			for _, v := range h.Values(k) {
				buf.WriteString(k)
				buf.WriteString(": ")
				buf.WriteString(v)
				buf.WriteString("\r\n")
			}
		}
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}
