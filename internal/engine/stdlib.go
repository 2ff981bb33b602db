package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// stdlibFunc is the implementation of one standard-library function. The
// analyzer has already bound and checked argument types; implementations
// still validate shapes because values may be Union-typed.
type stdlibFunc func(c *evalContext, args []Value) (Value, error)

// stdlibKnown lists every function the signature table declares, so calls
// to a declared-but-unimplemented function fail with a precise error.
var stdlibKnown = map[string]struct{}{
	"floor": {}, "ceil": {}, "round": {}, "min": {}, "max": {},
	"find": {}, "matches": {}, "sub": {}, "basename": {}, "join_paths": {},
	"glob": {}, "size": {}, "stdout": {}, "stderr": {},
	"read_string": {}, "read_int": {}, "read_float": {}, "read_boolean": {},
	"read_lines": {}, "write_lines": {}, "read_tsv": {}, "write_tsv": {},
	"read_map": {}, "write_map": {}, "read_json": {}, "write_json": {},
	"read_object": {}, "read_objects": {}, "write_object": {}, "write_objects": {},
	"length": {}, "range": {}, "transpose": {}, "cross": {}, "zip": {},
	"unzip": {}, "contains": {}, "chunk": {}, "flatten": {},
	"select_first": {}, "select_all": {}, "as_pairs": {}, "as_map": {},
	"keys": {}, "contains_key": {}, "values": {}, "collect_by_key": {},
	"defined": {}, "prefix": {}, "suffix": {}, "quote": {}, "squote": {}, "sep": {},
}

var stdlibImpl = map[string]stdlibFunc{
	"floor": func(_ *evalContext, args []Value) (Value, error) {
		return IntValue(int64(math.Floor(args[0].AsFloat()))), nil
	},
	"ceil": func(_ *evalContext, args []Value) (Value, error) {
		return IntValue(int64(math.Ceil(args[0].AsFloat()))), nil
	},
	"round": func(_ *evalContext, args []Value) (Value, error) {
		return IntValue(int64(math.Round(args[0].AsFloat()))), nil
	},
	"min": func(_ *evalContext, args []Value) (Value, error) {
		return numericExtreme(args, true)
	},
	"max": func(_ *evalContext, args []Value) (Value, error) {
		return numericExtreme(args, false)
	},
	"find": func(_ *evalContext, args []Value) (Value, error) {
		re, err := regexp.Compile(args[1].AsString())
		if err != nil {
			return NoneValue(), fmt.Errorf("invalid regular expression: %w", err)
		}
		if m := re.FindString(args[0].AsString()); m != "" || re.MatchString(args[0].AsString()) {
			return StringValue(m), nil
		}
		return NoneValue(), nil
	},
	"matches": func(_ *evalContext, args []Value) (Value, error) {
		re, err := regexp.Compile(args[1].AsString())
		if err != nil {
			return NoneValue(), fmt.Errorf("invalid regular expression: %w", err)
		}
		return BooleanValue(re.MatchString(args[0].AsString())), nil
	},
	"sub": func(_ *evalContext, args []Value) (Value, error) {
		re, err := regexp.Compile(args[1].AsString())
		if err != nil {
			return NoneValue(), fmt.Errorf("invalid regular expression: %w", err)
		}
		return StringValue(re.ReplaceAllString(args[0].AsString(), args[2].AsString())), nil
	},
	"basename": func(_ *evalContext, args []Value) (Value, error) {
		base := filepath.Base(args[0].AsString())
		if len(args) > 1 {
			base = strings.TrimSuffix(base, args[1].AsString())
		}
		return StringValue(base), nil
	},
	"join_paths": func(_ *evalContext, args []Value) (Value, error) {
		var parts []string
		for _, a := range args {
			if a.Kind() == KindArray {
				for _, e := range a.Array().Elems {
					parts = append(parts, e.AsString())
				}
			} else {
				parts = append(parts, a.AsString())
			}
		}
		for _, p := range parts[1:] {
			if filepath.IsAbs(p) {
				return NoneValue(), fmt.Errorf("path %q must be relative", p)
			}
		}
		return FileValue(filepath.Join(parts...)), nil
	},
	"glob": func(c *evalContext, args []Value) (Value, error) {
		pattern := args[0].AsString()
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(c.workDir, pattern)
		}
		paths, err := filepath.Glob(pattern)
		if err != nil {
			return NoneValue(), err
		}
		sort.Strings(paths)
		elems := make([]Value, len(paths))
		for i, p := range paths {
			elems[i] = FileValue(p)
		}
		return ArrayOf(elems...), nil
	},
	"size": func(c *evalContext, args []Value) (Value, error) {
		unit := "B"
		if len(args) > 1 {
			unit = args[1].AsString()
		}
		divisor, err := sizeUnit(unit)
		if err != nil {
			return NoneValue(), err
		}
		var total int64
		var walkErr error
		args[0].VisitPaths(func(path string, _ bool) {
			if walkErr != nil {
				return
			}
			n, err := pathSize(c.resolvePath(path))
			if err != nil {
				walkErr = err
				return
			}
			total += n
		})
		if walkErr != nil {
			return NoneValue(), walkErr
		}
		return FloatValue(float64(total) / divisor), nil
	},
	"stdout": func(c *evalContext, _ []Value) (Value, error) {
		if c.stdout == "" {
			return NoneValue(), fmt.Errorf("stdout is only available in task outputs")
		}
		return FileValue(c.stdout), nil
	},
	"stderr": func(c *evalContext, _ []Value) (Value, error) {
		if c.stderr == "" {
			return NoneValue(), fmt.Errorf("stderr is only available in task outputs")
		}
		return FileValue(c.stderr), nil
	},
	"read_string": func(c *evalContext, args []Value) (Value, error) {
		data, err := os.ReadFile(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		return StringValue(strings.TrimRight(string(data), "\r\n")), nil
	},
	"read_int": func(c *evalContext, args []Value) (Value, error) {
		data, err := os.ReadFile(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return NoneValue(), fmt.Errorf("file does not contain an integer: %w", err)
		}
		return IntValue(v), nil
	},
	"read_float": func(c *evalContext, args []Value) (Value, error) {
		data, err := os.ReadFile(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			return NoneValue(), fmt.Errorf("file does not contain a float: %w", err)
		}
		return FloatValue(v), nil
	},
	"read_boolean": func(c *evalContext, args []Value) (Value, error) {
		data, err := os.ReadFile(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		switch strings.ToLower(strings.TrimSpace(string(data))) {
		case "true":
			return BooleanValue(true), nil
		case "false":
			return BooleanValue(false), nil
		}
		return NoneValue(), fmt.Errorf("file does not contain a boolean")
	},
	"read_lines": func(c *evalContext, args []Value) (Value, error) {
		f, err := os.Open(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		defer f.Close()
		var elems []Value
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			elems = append(elems, StringValue(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			return NoneValue(), err
		}
		return ArrayOf(elems...), nil
	},
	"write_lines": func(c *evalContext, args []Value) (Value, error) {
		var b strings.Builder
		for _, e := range args[0].Array().Elems {
			b.WriteString(e.String())
			b.WriteByte('\n')
		}
		return c.writeTemp("lines", b.String())
	},
	"read_json": func(c *evalContext, args []Value) (Value, error) {
		data, err := os.ReadFile(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return NoneValue(), fmt.Errorf("invalid JSON: %w", err)
		}
		return fromJSON(raw)
	},
	"write_json": func(c *evalContext, args []Value) (Value, error) {
		data, err := json.MarshalIndent(args[0].ToJSON(), "", "  ")
		if err != nil {
			return NoneValue(), err
		}
		return c.writeTemp("json", string(data))
	},
	"read_map": func(c *evalContext, args []Value) (Value, error) {
		f, err := os.Open(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		defer f.Close()
		var entries []MapEntry
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			key, value, ok := strings.Cut(line, "\t")
			if !ok {
				return NoneValue(), fmt.Errorf("line %q is not tab-separated", line)
			}
			entries = append(entries, MapEntry{Key: StringValue(key), Value: StringValue(value)})
		}
		if err := scanner.Err(); err != nil {
			return NoneValue(), err
		}
		return MapOf(entries), nil
	},
	"write_map": func(c *evalContext, args []Value) (Value, error) {
		var b strings.Builder
		for _, e := range args[0].Map().Entries {
			fmt.Fprintf(&b, "%s\t%s\n", e.Key, e.Value)
		}
		return c.writeTemp("map", b.String())
	},
	"read_tsv": func(c *evalContext, args []Value) (Value, error) {
		f, err := os.Open(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		defer f.Close()
		var rows []Value
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fields := strings.Split(scanner.Text(), "\t")
			cols := make([]Value, len(fields))
			for i, field := range fields {
				cols[i] = StringValue(field)
			}
			rows = append(rows, ArrayOf(cols...))
		}
		if err := scanner.Err(); err != nil {
			return NoneValue(), err
		}
		return ArrayOf(rows...), nil
	},
	"write_tsv": func(c *evalContext, args []Value) (Value, error) {
		var b strings.Builder
		for _, row := range args[0].Array().Elems {
			parts := make([]string, len(row.Array().Elems))
			for i, col := range row.Array().Elems {
				parts[i] = col.String()
			}
			b.WriteString(strings.Join(parts, "\t"))
			b.WriteByte('\n')
		}
		return c.writeTemp("tsv", b.String())
	},
	"read_object": func(c *evalContext, args []Value) (Value, error) {
		objects, err := readObjectRows(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		if len(objects) != 1 {
			return NoneValue(), fmt.Errorf("expected exactly one object row, found %d", len(objects))
		}
		return objects[0], nil
	},
	"read_objects": func(c *evalContext, args []Value) (Value, error) {
		objects, err := readObjectRows(c.resolvePath(args[0].AsString()))
		if err != nil {
			return NoneValue(), err
		}
		return ArrayOf(objects...), nil
	},
	"write_object": func(c *evalContext, args []Value) (Value, error) {
		content, err := writeObjectRows([]Value{args[0]})
		if err != nil {
			return NoneValue(), err
		}
		return c.writeTemp("object", content)
	},
	"write_objects": func(c *evalContext, args []Value) (Value, error) {
		content, err := writeObjectRows(args[0].Array().Elems)
		if err != nil {
			return NoneValue(), err
		}
		return c.writeTemp("objects", content)
	},
	"length": func(_ *evalContext, args []Value) (Value, error) {
		switch args[0].Kind() {
		case KindArray:
			return IntValue(int64(len(args[0].Array().Elems))), nil
		case KindMap:
			return IntValue(int64(len(args[0].Map().Entries))), nil
		case KindObject, KindStruct:
			return IntValue(int64(len(args[0].Object().Members))), nil
		case KindString:
			return IntValue(int64(len(args[0].AsString()))), nil
		}
		return NoneValue(), fmt.Errorf("cannot take the length of %s", args[0].describe())
	},
	"range": func(_ *evalContext, args []Value) (Value, error) {
		n := args[0].AsInt()
		if n < 0 {
			return NoneValue(), fmt.Errorf("range requires a non-negative count")
		}
		elems := make([]Value, n)
		for i := int64(0); i < n; i++ {
			elems[i] = IntValue(i)
		}
		return ArrayOf(elems...), nil
	},
	"transpose": func(_ *evalContext, args []Value) (Value, error) {
		rows := args[0].Array().Elems
		if len(rows) == 0 {
			return ArrayOf(), nil
		}
		width := len(rows[0].Array().Elems)
		for _, row := range rows {
			if len(row.Array().Elems) != width {
				return NoneValue(), fmt.Errorf("rows have unequal lengths")
			}
		}
		out := make([]Value, width)
		for i := 0; i < width; i++ {
			col := make([]Value, len(rows))
			for j, row := range rows {
				col[j] = row.Array().Elems[i]
			}
			out[i] = ArrayOf(col...)
		}
		return ArrayOf(out...), nil
	},
	"cross": func(_ *evalContext, args []Value) (Value, error) {
		var out []Value
		for _, a := range args[0].Array().Elems {
			for _, b := range args[1].Array().Elems {
				out = append(out, PairOf(a, b))
			}
		}
		return ArrayOf(out...), nil
	},
	"zip": func(_ *evalContext, args []Value) (Value, error) {
		left, right := args[0].Array().Elems, args[1].Array().Elems
		if len(left) != len(right) {
			return NoneValue(), fmt.Errorf("arrays have different lengths (%d and %d)", len(left), len(right))
		}
		out := make([]Value, len(left))
		for i := range left {
			out[i] = PairOf(left[i], right[i])
		}
		return ArrayOf(out...), nil
	},
	"unzip": func(_ *evalContext, args []Value) (Value, error) {
		pairs := args[0].Array().Elems
		lefts := make([]Value, len(pairs))
		rights := make([]Value, len(pairs))
		for i, p := range pairs {
			lefts[i] = p.Pair().Left
			rights[i] = p.Pair().Right
		}
		return PairOf(ArrayOf(lefts...), ArrayOf(rights...)), nil
	},
	"contains": func(_ *evalContext, args []Value) (Value, error) {
		for _, e := range args[0].Array().Elems {
			if e.Equal(args[1]) {
				return BooleanValue(true), nil
			}
		}
		return BooleanValue(false), nil
	},
	"chunk": func(_ *evalContext, args []Value) (Value, error) {
		size := args[1].AsInt()
		if size <= 0 {
			return NoneValue(), fmt.Errorf("chunk size must be positive")
		}
		elems := args[0].Array().Elems
		var out []Value
		for start := 0; start < len(elems); start += int(size) {
			end := start + int(size)
			if end > len(elems) {
				end = len(elems)
			}
			out = append(out, ArrayOf(elems[start:end]...))
		}
		return ArrayOf(out...), nil
	},
	"flatten": func(_ *evalContext, args []Value) (Value, error) {
		var out []Value
		for _, inner := range args[0].Array().Elems {
			out = append(out, inner.Array().Elems...)
		}
		return ArrayOf(out...), nil
	},
	"select_first": func(_ *evalContext, args []Value) (Value, error) {
		for _, e := range args[0].Array().Elems {
			if !e.IsNone() {
				return e, nil
			}
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return NoneValue(), fmt.Errorf("no element is defined")
	},
	"select_all": func(_ *evalContext, args []Value) (Value, error) {
		var out []Value
		for _, e := range args[0].Array().Elems {
			if !e.IsNone() {
				out = append(out, e)
			}
		}
		return ArrayOf(out...), nil
	},
	"as_pairs": func(_ *evalContext, args []Value) (Value, error) {
		entries := args[0].Map().Entries
		out := make([]Value, len(entries))
		for i, e := range entries {
			out[i] = PairOf(e.Key, e.Value)
		}
		return ArrayOf(out...), nil
	},
	"as_map": func(_ *evalContext, args []Value) (Value, error) {
		pairs := args[0].Array().Elems
		entries := make([]MapEntry, 0, len(pairs))
		for _, p := range pairs {
			key := p.Pair().Left
			for _, existing := range entries {
				if existing.Key.SameKey(key) {
					return NoneValue(), fmt.Errorf("duplicate key %s", key)
				}
			}
			entries = append(entries, MapEntry{Key: key, Value: p.Pair().Right})
		}
		return MapOf(entries), nil
	},
	"keys": func(_ *evalContext, args []Value) (Value, error) {
		switch args[0].Kind() {
		case KindMap:
			entries := args[0].Map().Entries
			out := make([]Value, len(entries))
			for i, e := range entries {
				out[i] = e.Key
			}
			return ArrayOf(out...), nil
		case KindObject, KindStruct:
			members := args[0].Object().Members
			out := make([]Value, len(members))
			for i, m := range members {
				out[i] = StringValue(m.Name)
			}
			return ArrayOf(out...), nil
		}
		return NoneValue(), fmt.Errorf("cannot take the keys of %s", args[0].describe())
	},
	"contains_key": func(_ *evalContext, args []Value) (Value, error) {
		switch args[0].Kind() {
		case KindMap:
			_, ok := args[0].Map().Get(args[1])
			return BooleanValue(ok), nil
		case KindObject, KindStruct:
			_, ok := args[0].Object().Get(args[1].AsString())
			return BooleanValue(ok), nil
		}
		return NoneValue(), fmt.Errorf("cannot check keys of %s", args[0].describe())
	},
	"values": func(_ *evalContext, args []Value) (Value, error) {
		entries := args[0].Map().Entries
		out := make([]Value, len(entries))
		for i, e := range entries {
			out[i] = e.Value
		}
		return ArrayOf(out...), nil
	},
	"collect_by_key": func(_ *evalContext, args []Value) (Value, error) {
		var entries []MapEntry
		for _, p := range args[0].Array().Elems {
			key, value := p.Pair().Left, p.Pair().Right
			found := false
			for i, e := range entries {
				if e.Key.SameKey(key) {
					arr := e.Value.Array()
					arr.Elems = append(arr.Elems, value)
					entries[i].Value = Value{kind: KindArray, array: arr}
					found = true
					break
				}
			}
			if !found {
				entries = append(entries, MapEntry{Key: key, Value: ArrayOf(value)})
			}
		}
		return MapOf(entries), nil
	},
	"defined": func(_ *evalContext, args []Value) (Value, error) {
		return BooleanValue(!args[0].IsNone()), nil
	},
	"prefix": func(_ *evalContext, args []Value) (Value, error) {
		return mapStrings(args[1], func(s string) string { return args[0].AsString() + s })
	},
	"suffix": func(_ *evalContext, args []Value) (Value, error) {
		return mapStrings(args[1], func(s string) string { return s + args[0].AsString() })
	},
	"quote": func(_ *evalContext, args []Value) (Value, error) {
		return mapStrings(args[0], func(s string) string { return `"` + s + `"` })
	},
	"squote": func(_ *evalContext, args []Value) (Value, error) {
		return mapStrings(args[0], func(s string) string { return "'" + s + "'" })
	},
	"sep": func(_ *evalContext, args []Value) (Value, error) {
		elems := args[1].Array().Elems
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return StringValue(strings.Join(parts, args[0].AsString())), nil
	},
}

func numericExtreme(args []Value, wantMin bool) (Value, error) {
	a, b := args[0], args[1]
	if a.Kind() == KindInt && b.Kind() == KindInt {
		x, y := a.AsInt(), b.AsInt()
		if (x < y) == wantMin {
			return IntValue(x), nil
		}
		return IntValue(y), nil
	}
	x, y := a.AsFloat(), b.AsFloat()
	if (x < y) == wantMin {
		return FloatValue(x), nil
	}
	return FloatValue(y), nil
}

func mapStrings(arr Value, fn func(string) string) (Value, error) {
	if arr.Kind() != KindArray {
		return NoneValue(), fmt.Errorf("expected an array")
	}
	out := make([]Value, len(arr.Array().Elems))
	for i, e := range arr.Array().Elems {
		out[i] = StringValue(fn(e.String()))
	}
	return ArrayOf(out...), nil
}

// readObjectRows parses the object TSV format: a tab-separated header line
// naming the members, then one value line per object.
func readObjectRows(path string) ([]Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("file is missing the object header line")
	}
	names := strings.Split(scanner.Text(), "\t")
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("object header contains an empty member name")
		}
		if seen[name] {
			return nil, fmt.Errorf("object header repeats member %q", name)
		}
		seen[name] = true
	}

	var objects []Value
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(names) {
			return nil, fmt.Errorf("object row has %d values, header names %d members", len(fields), len(names))
		}
		members := make([]ObjectMember, len(names))
		for i, name := range names {
			members[i] = ObjectMember{Name: name, Value: StringValue(fields[i])}
		}
		objects = append(objects, ObjectOf(members))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return objects, nil
}

// writeObjectRows renders objects as a header line plus one value line per
// object. Every object must carry the same members, and member values must
// be primitive.
func writeObjectRows(objects []Value) (string, error) {
	var b strings.Builder
	var names []string
	for i, obj := range objects {
		if obj.Kind() != KindObject && obj.Kind() != KindStruct {
			return "", fmt.Errorf("expected an object, found %s", obj.describe())
		}
		members := obj.Object().Members
		if i == 0 {
			names = make([]string, len(members))
			for j, m := range members {
				names[j] = m.Name
			}
			b.WriteString(strings.Join(names, "\t"))
			b.WriteByte('\n')
		} else if len(members) != len(names) {
			return "", fmt.Errorf("objects have differing member sets")
		}
		parts := make([]string, len(names))
		for j, name := range names {
			v, ok := obj.Object().Get(name)
			if !ok {
				return "", fmt.Errorf("objects have differing member sets")
			}
			switch v.Kind() {
			case KindBoolean, KindInt, KindFloat, KindString, KindFile, KindDirectory:
				parts[j] = v.String()
			default:
				return "", fmt.Errorf("member %q is not primitive and cannot be serialized", name)
			}
		}
		b.WriteString(strings.Join(parts, "\t"))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func sizeUnit(unit string) (float64, error) {
	switch unit {
	case "B", "":
		return 1, nil
	case "KB", "K":
		return 1000, nil
	case "MB", "M":
		return 1000 * 1000, nil
	case "GB", "G":
		return 1000 * 1000 * 1000, nil
	case "TB", "T":
		return 1000 * 1000 * 1000 * 1000, nil
	case "KiB", "Ki":
		return 1024, nil
	case "MiB", "Mi":
		return 1024 * 1024, nil
	case "GiB", "Gi":
		return 1024 * 1024 * 1024, nil
	case "TiB", "Ti":
		return 1024 * 1024 * 1024 * 1024, nil
	}
	return 0, fmt.Errorf("unknown size unit %q", unit)
}

func pathSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// resolvePath joins a relative path against the context's work directory.
func (c *evalContext) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.workDir == "" {
		return path
	}
	return filepath.Join(c.workDir, path)
}

// writeTemp persists content to a fresh file under the work directory and
// returns it as a File value.
func (c *evalContext) writeTemp(kind, content string) (Value, error) {
	dir := c.workDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "wdl-"+kind+"-*.txt")
	if err != nil {
		return NoneValue(), err
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return NoneValue(), err
	}
	return FileValue(f.Name()), nil
}
