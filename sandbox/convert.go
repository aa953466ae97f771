package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"go.starlark.net/starlark"
)

// toGo converts a Starlark value to plain Go values suitable for JSON.
func toGo(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
		return json.Number(v.BigInt().String()), nil
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Bytes:
		return string(v), nil
	case *starlark.List:
		return iterableToGo(v)
	case starlark.Tuple:
		return iterableToGo(v)
	case *starlark.Set:
		return iterableToGo(v)
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			val, err := toGo(item[1])
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	default:
		return v.String(), nil
	}
}

func iterableToGo(v starlark.Iterable) ([]any, error) {
	out := []any{}
	it := v.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		g, err := toGo(x)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// fromGo converts decoded JSON values to Starlark values.
func fromGo(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		if b, ok := new(big.Int).SetString(v.String(), 10); ok {
			return starlark.MakeBigInt(b), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return starlark.Float(f), nil
	case float64:
		return starlark.Float(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			sv, err := fromGo(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(v))
		for _, k := range keys {
			sv, err := fromGo(v[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// decodeResult turns a tool's text result into a Starlark value. Tools whose
// output is declared "string" only have JSON objects and arrays decoded;
// other tools have any JSON value decoded. Anything else stays a string.
func decodeResult(s, output string) starlark.Value {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 {
		return starlark.String(s)
	}
	if output == "string" && trimmed[0] != '{' && trimmed[0] != '[' {
		return starlark.String(s)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return starlark.String(s)
	}
	sv, err := fromGo(v)
	if err != nil {
		return starlark.String(s)
	}
	return sv
}

// text renders a value for observations. Strings are not quoted.
func text(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// copyValue deep-copies mutable containers so a failed execution cannot
// mutate persisted state.
func copyValue(v starlark.Value) starlark.Value {
	switch v := v.(type) {
	case *starlark.List:
		elems := make([]starlark.Value, v.Len())
		for i := 0; i < v.Len(); i++ {
			elems[i] = copyValue(v.Index(i))
		}
		return starlark.NewList(elems)
	case starlark.Tuple:
		out := make(starlark.Tuple, len(v))
		for i, e := range v {
			out[i] = copyValue(e)
		}
		return out
	case *starlark.Dict:
		d := starlark.NewDict(v.Len())
		for _, item := range v.Items() {
			_ = d.SetKey(item[0], copyValue(item[1]))
		}
		return d
	case *starlark.Set:
		s := starlark.NewSet(v.Len())
		it := v.Iterate()
		defer it.Done()
		var x starlark.Value
		for it.Next(&x) {
			_ = s.Insert(x)
		}
		return s
	default:
		return v
	}
}
