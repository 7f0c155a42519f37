package script

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/searchktools/fastry/core/http"
	lua "github.com/yuin/gopher-lua"
)

// result mirrors the table a handler must return
type result struct {
	Code int    `mapstructure:"code"`
	Type string `mapstructure:"type"`
	Body string `mapstructure:"body"`
}

// requestTable converts req into the table handed to handlers
func requestTable(L *lua.LState, req *http.Request, requestID string) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(requestID))
	t.RawSetString("method", lua.LString(req.Method))
	t.RawSetString("path", lua.LString(req.Path))
	t.RawSetString("http_version", lua.LString(req.Proto))
	t.RawSetString("body", lua.LString(req.Body))
	t.RawSetString("headers", stringTable(L, req.Headers))
	t.RawSetString("path_variables", stringTable(L, req.PathVariables))

	if req.IsJSON() && len(req.Body) > 0 {
		var payload any
		if err := json.Unmarshal(req.Body, &payload); err == nil {
			t.RawSetString("json", toLua(L, payload))
		}
	}
	return t
}

func stringTable(L *lua.LState, m map[string]string) *lua.LTable {
	t := L.CreateTable(0, len(m))
	for k, v := range m {
		t.RawSetString(k, lua.LString(v))
	}
	return t
}

// toLua converts a decoded JSON value
func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		t := L.CreateTable(len(v), 0)
		for _, item := range v {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(v))
		for k, item := range v {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// resultFields lists the keys read from a handler result. Other keys are
// never visited, so a result may reference itself.
var resultFields = []string{"code", "type", "body"}

// scalar converts a non-table Lua value into a plain Go value
func scalar(v lua.LValue) (any, bool) {
	switch v := v.(type) {
	case lua.LBool:
		return bool(v), true
	case lua.LNumber:
		return float64(v), true
	case lua.LString:
		return string(v), true
	default:
		return nil, false
	}
}

// decodeResult checks that v is a table carrying integer code, string type
// and string body.
func decodeResult(v lua.LValue) (http.Response, error) {
	table, ok := v.(*lua.LTable)
	if !ok {
		return http.Response{}, fmt.Errorf("%w: got %s, want table", ErrInvalidResult, v.Type())
	}

	fields := make(map[string]any, len(resultFields))
	for _, key := range resultFields {
		value := table.RawGetString(key)
		if value == lua.LNil {
			continue
		}
		converted, ok := scalar(value)
		if !ok {
			return http.Response{}, fmt.Errorf("%w: %s is a %s", ErrInvalidResult, key, value.Type())
		}
		fields[key] = converted
	}

	var out result
	var meta mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: &meta,
		Result:   &out,
	})
	if err != nil {
		return http.Response{}, err
	}
	if err := dec.Decode(fields); err != nil {
		return http.Response{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if len(meta.Unset) > 0 {
		sort.Strings(meta.Unset)
		return http.Response{}, fmt.Errorf("%w: missing %v", ErrInvalidResult, meta.Unset)
	}
	if code, _ := fields["code"].(float64); code != float64(out.Code) || out.Code < 100 || out.Code > 999 {
		return http.Response{}, fmt.Errorf("%w: status code %v", ErrInvalidResult, fields["code"])
	}
	// type is written as a header value
	if strings.ContainsAny(out.Type, "\r\n") {
		return http.Response{}, fmt.Errorf("%w: type contains a line break", ErrInvalidResult)
	}

	return http.Response{Code: out.Code, ContentType: out.Type, Body: out.Body}, nil
}
