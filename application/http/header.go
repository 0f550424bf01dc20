package http

import (
	"slices"

	"http-keepalive/application/util/rule"
)

// Headers is a multi-valued field table with canonical names.
// Each value is one field line as received; list values are not split.
// Field order is kept as first seen.
type Headers struct {
	underlying map[string][]string
	order      []string
}

func NewHeaders(initial map[string][]string) Headers {
	h := Headers{underlying: make(map[string][]string, len(initial))}

	keys := make([]string, 0, len(initial))
	for k := range initial {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range initial[k] {
			h.Add(k, v)
		}
	}
	return h
}

// HeadersFrom creates headers from raw fields.
func HeadersFrom(fields []Field) Headers {
	h := Headers{underlying: make(map[string][]string, len(fields))}
	for _, field := range fields {
		h.Add(string(field.Name), string(field.Value))
	}
	return h
}

// Get returns the first value of key.
// For list-based field, use [Headers.Values].
func (h *Headers) Get(key string) (value string, ok bool) {
	v, ok := h.underlying[canonical(key)]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (h *Headers) Values(key string) []string {
	return slices.Clone(h.underlying[canonical(key)])
}

func (h *Headers) Has(key string) bool {
	_, ok := h.underlying[canonical(key)]
	return ok
}

// Set overwrites existing values instead of appending to it.
func (h *Headers) Set(key, value string) {
	h.init()
	key = canonical(key)
	if _, ok := h.underlying[key]; !ok {
		h.order = append(h.order, key)
	}
	h.underlying[key] = []string{value}
}

func (h *Headers) Add(key, value string) {
	h.init()
	key = canonical(key)
	if _, ok := h.underlying[key]; !ok {
		h.order = append(h.order, key)
	}
	h.underlying[key] = append(h.underlying[key], value)
}

func (h *Headers) Del(key string) {
	key = canonical(key)
	if _, ok := h.underlying[key]; !ok {
		return
	}
	delete(h.underlying, key)
	h.order = slices.DeleteFunc(h.order, func(k string) bool { return k == key })
}

func (h *Headers) Len() int { return len(h.order) }

func (h *Headers) Clone() Headers {
	clone := Headers{
		underlying: make(map[string][]string, len(h.underlying)),
		order:      slices.Clone(h.order),
	}
	for k, v := range h.underlying {
		clone.underlying[k] = slices.Clone(v)
	}
	return clone
}

// Fields returns one raw field per value, in insertion order.
func (h *Headers) Fields() []Field {
	fields := make([]Field, 0, len(h.order))
	for _, k := range h.order {
		for _, v := range h.underlying[k] {
			fields = append(fields, Field{Name: []byte(k), Value: []byte(v)})
		}
	}
	return fields
}

func (h *Headers) init() {
	if h.underlying == nil {
		h.underlying = make(map[string][]string)
	}
}

func canonical(s string) string {
	if rule.IsValidToken(s) {
		s = toCanonicalFieldName(s)
	}
	return s
}

// This only works for valid token.
func toCanonicalFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}
