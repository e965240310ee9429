package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	coreconfig "github.com/m3rciful/swingbot/core/config"
)

type options struct {
	level     slog.Level
	format    logFormat
	keyOrder  []string
	profile   string
	sampleNum int
	sampleDen int
	trace     bool
	file      string
}

func resolveOptions(cfg *coreconfig.Config) options {
	opts := options{
		level:     slog.LevelInfo,
		format:    formatJSON,
		keyOrder:  slices.Clone(defaultKeyOrder),
		profile:   "prod",
		sampleNum: 1,
		sampleDen: 50,
		trace:     truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE")),
	}
	if cfg == nil {
		return opts
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		opts.profile = p
	}
	if opts.profile == "debug" || opts.profile == "dev" {
		opts.format = formatKV
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		opts.format = formatKV
	case "json":
		opts.format = formatJSON
	}

	// slog accepts DEBUG, INFO, WARN and ERROR in any case.
	lvl := strings.TrimSpace(lc.Level)
	if strings.EqualFold(lvl, "warning") {
		lvl = "warn"
	}
	var parsed slog.Level
	if lvl != "" && parsed.UnmarshalText([]byte(lvl)) == nil {
		opts.level = parsed
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			opts.keyOrder = order
		}
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec == "0" {
		opts.sampleNum, opts.sampleDen = 0, 0
	} else if num, den := parseRatioSpec(spec); num > 0 && den > 0 {
		opts.sampleNum, opts.sampleDen = num, den
	}

	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && name != "" {
		opts.file = filepath.Join(dir, name)
	}
	return opts
}

// openOutputs returns stdout plus the configured log file.
func openOutputs(opts options) ([]io.Writer, []io.Closer, error) {
	if opts.file == "" {
		return []io.Writer{os.Stdout}, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(opts.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return []io.Writer{os.Stdout, f}, []io.Closer{f}, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
