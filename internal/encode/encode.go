// Package encode writes hydrated results in one of the supported output formats.
package encode

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Format names an output encoding.
type Format string

const (
	JSON       Format = "json"
	JSONPretty Format = "json-pretty"
	MsgPack    Format = "msgpack"
	Dump       Format = "dump"
)

// Formats lists the supported formats.
var Formats = []Format{JSON, JSONPretty, MsgPack, Dump}

// ParseFormat resolves a format name. An empty name means JSON.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return JSON, nil
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (valid: json, json-pretty, msgpack, dump)", name)
}

// ContentType is the HTTP media type for f.
func (f Format) ContentType() string {
	switch f {
	case MsgPack:
		return "application/msgpack"
	case Dump:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Encode writes value to w in format f.
func Encode(w io.Writer, f Format, value any) error {
	switch f {
	case JSON, JSONPretty:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if f == JSONPretty {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("failed to encode %T to JSON: %w", value, err)
		}
		return nil
	case MsgPack:
		enc := msgpack.GetEncoder()
		defer msgpack.PutEncoder(enc)
		enc.Reset(w)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(Normalize(value)); err != nil {
			return fmt.Errorf("failed to encode %T using MsgPack: %w", value, err)
		}
		return nil
	case Dump:
		dumpConfig.Fdump(w, value)
		return nil
	}
	return fmt.Errorf("unsupported format %q", f)
}

// Normalize rewrites value into plain maps, slices and scalars. Decimals and
// UUIDs become their canonical strings and driver values are unwrapped.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil, string, bool, []byte, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case map[string]any:
		return normalizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Normalize(item)
		}
		return out
	case decimal.Decimal:
		return v.String()
	case uuid.UUID:
		return v.String()
	case json.Number:
		return v.String()
	case driver.Valuer:
		inner, err := v.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return Normalize(inner)
	case fmt.Stringer:
		return v.String()
	}
	return value
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = Normalize(item)
	}
	return out
}
