package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the document being hydrated.
type Context struct {
	Source string
	Format Format
}

// PreHook rewrites the raw payload before it is decoded. Returning a nil map
// keeps the current payload.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook fills defaults on, or validates, the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the JSON field mapping for T.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder turns parsed scene documents into typed values in three stages:
// pre hooks on a private copy of the payload, field mapping, post hooks.
// A Decoder is immutable after NewDecoder and safe for concurrent use.
type Decoder[T any] struct {
	pre       []PreHook
	post      []PostHook[T]
	custom    CustomDecoder[T]
	useNumber bool
	strict    bool
}

func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithUseNumber keeps numbers as json.Number instead of float64.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.useNumber = true
	}
}

// WithDisallowUnknownFields rejects documents with fields T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// WithCustomDecoder maps the payload with decoder instead of JSON tags. The
// field mapping options do not apply to it.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode runs payload through the pre hooks, the field mapping and the post
// hooks. The caller's payload is never modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %q", ctx.Source)
	}

	prepared, err := d.prepare(ctx, payload)
	if err != nil {
		return zero, err
	}
	value, err := d.mapFields(ctx, prepared)
	if err != nil {
		return zero, err
	}
	if err := d.finish(ctx, &value); err != nil {
		return zero, err
	}
	return value, nil
}

// DecodeBytes parses data in ctx.Format and decodes it.
func (d *Decoder[T]) DecodeBytes(ctx Context, data []byte) (T, error) {
	payload, err := Parse(data, ctx.Format)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("hydrate: parse %q: %w", ctx.Source, err)
	}
	return d.Decode(ctx, payload)
}

func (d *Decoder[T]) prepare(ctx Context, payload map[string]any) (map[string]any, error) {
	current, ok := copyValue(payload).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("hydrate: copy payload for %q", ctx.Source)
	}
	for _, hook := range d.pre {
		next, err := hook(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("hydrate: pre-hook for %q failed: %w", ctx.Source, err)
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

func (d *Decoder[T]) mapFields(ctx Context, payload map[string]any) (T, error) {
	var value T
	if d.custom != nil {
		decoded, err := d.custom(ctx, payload)
		if err != nil {
			return value, fmt.Errorf("hydrate: custom decoder for %q failed: %w", ctx.Source, err)
		}
		return decoded, nil
	}

	buffer, err := json.Marshal(payload)
	if err != nil {
		return value, fmt.Errorf("hydrate: marshal payload for %q: %w", ctx.Source, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.useNumber {
		decoder.UseNumber()
	}
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&value); err != nil {
		return value, fmt.Errorf("hydrate: decode %q: %w", ctx.Source, err)
	}
	return value, nil
}

func (d *Decoder[T]) finish(ctx Context, value *T) error {
	for _, hook := range d.post {
		if err := hook(ctx, value); err != nil {
			return fmt.Errorf("hydrate: post-hook for %q failed: %w", ctx.Source, err)
		}
	}
	return nil
}

// copyValue deep-copies the maps and slices a parsed document is built from.
// Scalars are shared.
func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return value
	}
}
