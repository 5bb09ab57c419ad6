package slogutil

import (
	"context"
	"log/slog"
	"maps"
)

type data map[string]slog.Attr

type dataKey struct{}

func cloneData(ctx context.Context) data {
	d, ok := ctx.Value(dataKey{}).(data)
	if !ok {
		return data{}
	}
	return maps.Clone(d)
}

// With returns a new context carrying the given key-value pairs. Every log
// record emitted with that context picks them up, so a reconciliation run
// can stamp its root name once instead of repeating it at each call site.
func With(ctx context.Context, kvargs ...any) context.Context {
	if len(kvargs) == 0 {
		return ctx
	}

	d := cloneData(ctx)

	var r slog.Record
	r.Add(kvargs...)
	r.Attrs(func(a slog.Attr) bool {
		d[a.Key] = a
		return true
	})

	return context.WithValue(ctx, dataKey{}, d)
}

// Handler wraps a slog.Handler and appends context-carried attributes to
// every record.
type Handler struct {
	handler slog.Handler
}

// WrapHandler creates a Handler around the given slog.Handler.
func WrapHandler(h slog.Handler) Handler {
	return Handler{handler: h}
}

func (h Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.handler.Enabled(ctx, l)
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if d, ok := ctx.Value(dataKey{}).(data); ok && len(d) > 0 {
		r = r.Clone()
		for _, a := range d {
			r.AddAttrs(a)
		}
	}
	return h.handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{handler: h.handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{handler: h.handler.WithGroup(name)}
}
