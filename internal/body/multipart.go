package body

import (
	"bufio"
	"bytes"
	"net/textproto"
	"strings"
)

// Part summarizes one multipart section: its headers and where its body
// sits in the captured content.
type Part struct {
	Headers map[string]string `json:"headers"`
	Offset  int               `json:"offset"`
	Length  int               `json:"length"`
}

// ParseMultipart walks boundary-delimited parts of data without copying part
// bodies. A part cut off by truncation reports the bytes that were captured.
func ParseMultipart(data []byte, boundary string) []Part {
	delim := []byte("--" + boundary)
	pos := bytes.Index(data, delim)
	if pos < 0 {
		return nil
	}
	var parts []Part
	for {
		pos += len(delim)
		if bytes.HasPrefix(data[pos:], []byte("--")) {
			return parts
		}
		nl := bytes.Index(data[pos:], []byte("\r\n"))
		if nl < 0 {
			return parts
		}
		pos += nl + 2

		headers := map[string]string{}
		var bodyStart int
		if bytes.HasPrefix(data[pos:], []byte("\r\n")) {
			bodyStart = pos + 2
		} else {
			end := bytes.Index(data[pos:], []byte("\r\n\r\n"))
			if end < 0 {
				return parts
			}
			headers = parseHeaders(data[pos : pos+end+4])
			bodyStart = pos + end + 4
		}

		next := bytes.Index(data[bodyStart:], append([]byte("\r\n"), delim...))
		if next < 0 {
			parts = append(parts, Part{Headers: headers, Offset: bodyStart, Length: len(data) - bodyStart})
			return parts
		}
		parts = append(parts, Part{Headers: headers, Offset: bodyStart, Length: next})
		pos = bodyStart + next + 2
	}
}

func parseHeaders(block []byte) map[string]string {
	out := map[string]string{}
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(block)))
	h, err := r.ReadMIMEHeader()
	if err != nil && len(h) == 0 {
		return out
	}
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
