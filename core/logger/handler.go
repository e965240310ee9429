package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one flat line of known keys first,
// then the rest sorted. Attrs added through WithAttrs are normalized once.
type structuredHandler struct {
	cfg    handlerConfig
	preset map[string]any
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg, preset: map[string]any{}}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = maps.Clone(h.preset)
	for _, a := range attrs {
		put(clone.preset, h.prefix, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	jsonOut := h.cfg.format == formatJSON

	fields := maps.Clone(h.preset)
	ts := r.Time.UTC().Truncate(time.Millisecond)
	fields["ts"] = ts.Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if jsonOut {
		fields["ts_unix_nano"] = r.Time.UnixNano()
	}
	r.Attrs(func(a slog.Attr) bool {
		put(fields, h.prefix, a)
		return true
	})
	fromContext(ctx, fields)
	finalize(fields, r.Message, jsonOut)

	keys := orderKeys(fields, h.cfg.keyOrder)
	var (
		line []byte
		err  error
	)
	if jsonOut {
		line, err = encodeJSON(fields, keys)
	} else {
		line = encodeKV(fields, keys)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

// put flattens a into fields, joining group names with dots.
func put(fields map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			put(fields, key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := normalizeValue(key, v); ok {
		fields[k] = val
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func normalizeValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, strings.TrimSpace(x.String()), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey makes the millisecond unit part of the key.
func durationKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func fromContext(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	setDefault := func(key string, v any, present bool) {
		if _, ok := fields[key]; !ok && present {
			fields[key] = v
		}
	}
	rid := RIDFrom(ctx)
	setDefault("rid", rid, rid != "")
	uid := UserIDFrom(ctx)
	setDefault("user_id", uid, uid != 0)
	upd := UpdateIDFrom(ctx)
	setDefault("update_id", upd, upd != 0)
	chat := ChatIDFrom(ctx)
	setDefault("chat_id", chat, chat != 0)
	handler := HandlerFrom(ctx)
	setDefault("handler", handler, handler != "")
}

// finalize fills event and component, compacts the rid and drops empty or
// unknown enumeration values.
func finalize(fields map[string]any, msg string, jsonOut bool) {
	if rid, _ := fields["rid"].(string); rid != "" {
		if short := CompactRID(rid); short != rid {
			if _, ok := fields["rid_full"]; jsonOut && !ok {
				fields["rid_full"] = rid
			}
			fields["rid"] = short
		}
	}
	if ev, _ := fields["event"].(string); ev == "" {
		fields["event"] = cmpOr(msg, "unknown")
	}
	if c, _ := fields["component"].(string); c == "" {
		fields["component"] = "app"
	}

	if s, ok := fields["status"].(string); ok {
		fields["status"], _ = normalizeStatus(s)
	}
	for key, norm := range map[string]func(string) (string, bool){
		"cache":   normalizeCache,
		"outcome": normalizeOutcome,
	} {
		s, ok := fields[key].(string)
		if !ok {
			continue
		}
		if v, valid := norm(s); valid {
			fields[key] = v
		} else {
			delete(fields, key)
		}
	}

	maps.DeleteFunc(fields, func(_ string, v any) bool {
		s, isString := v.(string)
		return v == nil || (isString && s == "")
	})
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// orderKeys lists keys from order that are present, then the remaining keys
// alphabetically.
func orderKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	known := make(map[string]bool, len(order))
	for _, k := range order {
		known[k] = true
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range fields {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func encodeJSON(fields map[string]any, keys []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeKV(fields map[string]any, keys []string) []byte {
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		s := fmt.Sprint(fields[k])
		if strings.ContainsFunc(s, needsQuote) {
			s = strconv.Quote(s)
		}
		buf.WriteString(s)
	}
	return buf.Bytes()
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
