package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// shortIDLen is how much of a uuid is printed; enough to correlate lines.
const shortIDLen = 8

// CompactHandler formats logs for console output:
//
//	[LEVEL] HH:MM:SS component: message | key=value key=value
//
// Session and request ids are shortened and email addresses are masked, so a
// console log of a breach lookup does not repeat the address being looked up.
type CompactHandler struct {
	level     slog.Leveler
	mu        *sync.Mutex
	out       io.Writer
	component string
	attrs     []slog.Attr
	prefix    string // open groups, dot-joined with a trailing dot
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	h := &CompactHandler{level: slog.LevelInfo, mu: &sync.Mutex{}, out: w}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "[TRACE] "
	case l < slog.LevelInfo:
		return "[DEBUG] "
	case l < slog.LevelWarn:
		return "[INFO]  "
	case l < slog.LevelError:
		return "[WARN]  "
	}
	return "[ERROR] "
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(levelTag(r.Level))
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format("15:04:05"))
		b.WriteByte(' ')
	}
	if h.component != "" {
		b.WriteString(h.component)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)

	sep := " |"
	write := func(key string, v slog.Value) {
		b.WriteString(sep)
		sep = ""
		b.WriteByte(' ')
		writeAttr(&b, key, v)
	}
	for _, a := range h.attrs {
		write(a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		if !a.Equal(slog.Attr{}) {
			write(h.prefix+a.Key, a.Value)
		}
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func writeAttr(b *strings.Builder, key string, v slog.Value) {
	v = v.Resolve()
	base := key[strings.LastIndexByte(key, '.')+1:]

	switch base {
	case "requestID":
		b.WriteString("req=")
		b.WriteString(shortID(v.String()))
		return
	case "session":
		b.WriteString(key + "=")
		b.WriteString(shortID(v.String()))
		return
	case "email":
		b.WriteString(key + "=")
		b.WriteString(MaskEmail(v.String()))
		return
	case "durationMs":
		b.WriteString("duration=")
		b.WriteString(v.String())
		b.WriteString("ms")
		return
	case "error":
		b.WriteString(key + "=")
		b.WriteString(strconv.Quote(v.String()))
		return
	}

	b.WriteString(key)
	b.WriteByte('=')
	switch v.Kind() {
	case slog.KindString:
		b.WriteString(quoteIfNeeded(v.String()))
	case slog.KindFloat64:
		b.WriteString(strconv.FormatFloat(v.Float64(), 'g', 4, 64))
	case slog.KindTime:
		b.WriteString(v.Time().Format(time.RFC3339))
	default:
		b.WriteString(quoteIfNeeded(v.String()))
	}
}

func shortID(s string) string {
	if len(s) > shortIDLen {
		return s[:shortIDLen]
	}
	return s
}

// MaskEmail keeps the first character of the local part and the domain:
// alice@example.com becomes a***@example.com.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func (h *CompactHandler) clone() *CompactHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

// WithAttrs pulls a component attribute out in front of the message; all
// other attributes are printed after the bar on every record.
func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == "component" && h.prefix == "" {
			c.component = a.Value.String()
			continue
		}
		c.attrs = append(c.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return c
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}
