package http

import (
	"bytes"
	"errors"
)

var (
	ErrInvalidRequest = errors.New("invalid HTTP request")
	ErrInvalidMethod  = errors.New("unsupported HTTP method")
)

// ParseRequest parses one request from data.
//
// The parser is lenient about framing: a missing blank line after the headers
// (for example a request truncated by the read buffer) yields the headers that
// were seen and an empty body.
func ParseRequest(data []byte) (*Request, error) {
	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd == -1 {
		return nil, ErrInvalidRequest
	}

	line := data[:lineEnd]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	// METHOD SP PATH SP PROTO
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return nil, ErrInvalidRequest
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 <= 0 {
		return nil, ErrInvalidRequest
	}
	sp2 += sp1 + 1

	req := &Request{
		Method:  string(line[:sp1]),
		Path:    string(line[sp1+1 : sp2]),
		Proto:   string(line[sp2+1:]),
		Headers: make(map[string]string),
	}
	if _, ok := methods[req.Method]; !ok {
		return nil, ErrInvalidMethod
	}

	data = data[lineEnd+1:]

	headerEnd, sepLen := bytes.Index(data, []byte("\r\n\r\n")), 4
	if headerEnd == -1 {
		headerEnd, sepLen = bytes.Index(data, []byte("\n\n")), 2
	}
	if headerEnd == -1 {
		parseHeaders(req, data)
		return req, nil
	}

	parseHeaders(req, data[:headerEnd])
	if body := data[headerEnd+sepLen:]; len(body) > 0 {
		req.Body = append([]byte(nil), body...)
	}

	return req, nil
}

// parseHeaders parses "Key: value" lines, skipping lines without a colon
func parseHeaders(req *Request, data []byte) {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			lineEnd = len(data)
		}

		line := bytes.TrimSuffix(data[:lineEnd], []byte("\r"))
		if len(line) == 0 {
			break
		}

		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			key := string(bytes.TrimSpace(line[:colon]))
			value := string(bytes.TrimSpace(line[colon+1:]))
			req.SetHeader(key, value)
		}

		if lineEnd == len(data) {
			break
		}
		data = data[lineEnd+1:]
	}
}
