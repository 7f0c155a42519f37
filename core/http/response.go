package http

import (
	"strconv"
	"time"
)

// DefaultProto is used when the request did not carry a usable version
const DefaultProto = "HTTP/1.1"

// dateFormat is the IMF-fixdate layout used in the Date header
const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Response is the (status, content type, body) triple returned by a handler
type Response struct {
	Code        int
	ContentType string
	Body        string
}

// NotFound is written when no route matches
func NotFound() Response {
	return Response{Code: 404, ContentType: "text/plain"}
}

// BadRequest is written when the request bytes cannot be parsed
func BadRequest() Response {
	return Response{Code: 400, ContentType: "text/plain", Body: "Bad Request"}
}

// InternalError is written when a handler cannot be loaded or fails
func InternalError() Response {
	return Response{Code: 500, ContentType: "text/plain", Body: "Internal Server Error"}
}

// Format renders resp in wire form.
//
// The header block is followed by an extra CRLF before the body, and
// Content-Length covers those two bytes so clients read the whole body.
func Format(resp Response, proto, server string, now time.Time) []byte {
	if len(proto) < 5 || proto[:5] != "HTTP/" {
		proto = DefaultProto
	}

	b := make([]byte, 0, 160+len(resp.Body))
	b = append(b, proto...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(resp.Code), 10)
	b = append(b, " OK\r\nDate: "...)
	b = now.UTC().AppendFormat(b, dateFormat)
	b = append(b, "\r\nServer: "...)
	b = append(b, server...)
	b = append(b, "\r\nContent-Length: "...)
	b = strconv.AppendInt(b, int64(len(resp.Body)+2), 10)
	b = append(b, "\r\nContent-Type: "...)
	b = append(b, resp.ContentType...)
	b = append(b, "\r\nConnection: close\r\n\r\n\r\n"...)
	b = append(b, resp.Body...)
	return b
}
