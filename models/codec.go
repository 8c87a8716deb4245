package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Wire encoding: every attribute is a single-key JSON object naming its type
// tag. Numbers travel as JSON strings, binary as base64. Marshalling is an
// exhaustive switch on the kind, so an empty list stays {"L":[]} and an
// empty string set stays {"SS":[]}; there is no fallback that could
// collapse them to NULL.

// MarshalJSON implements the wire encoding of a single value.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindS:
		return tagged("S", v.str)
	case KindN:
		if !ValidNumber(v.str) {
			return nil, fmt.Errorf("invalid number value %q", v.str)
		}
		return tagged("N", v.str)
	case KindB:
		return tagged("B", base64.StdEncoding.EncodeToString(v.bin))
	case KindBOOL:
		return tagged("BOOL", v.b)
	case KindNULL:
		return tagged("NULL", true)
	case KindSS:
		return tagged("SS", nonNil(v.strs))
	case KindNS:
		for _, n := range v.strs {
			if !ValidNumber(n) {
				return nil, fmt.Errorf("invalid number set member %q", n)
			}
		}
		return tagged("NS", nonNil(v.strs))
	case KindBS:
		enc := make([]string, len(v.bins))
		for i, b := range v.bins {
			enc[i] = base64.StdEncoding.EncodeToString(b)
		}
		return tagged("BS", enc)
	case KindL:
		if v.list == nil {
			return tagged("L", []AttributeValue{})
		}
		return tagged("L", v.list)
	case KindM:
		if v.m == nil {
			return tagged("M", map[string]AttributeValue{})
		}
		return tagged("M", v.m)
	}
	return nil, fmt.Errorf("cannot serialize an unpopulated attribute value")
}

func tagged(tag string, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{tag: payload})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// UnmarshalJSON decodes the wire encoding. The object must carry exactly
// one recognized type tag; anything else is a malformed value.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("malformed attribute value: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("attribute value must have exactly one type tag, got %d", len(raw))
	}
	var tag string
	var payload json.RawMessage
	for t, p := range raw {
		tag, payload = t, p
	}
	kind, ok := KindFromTag(tag)
	if !ok {
		return fmt.Errorf("unrecognized attribute type tag %q", tag)
	}
	switch kind {
	case KindS:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("S payload: %w", err)
		}
		*v = S(s)
	case KindN:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("N payload: %w", err)
		}
		if !ValidNumber(s) {
			return fmt.Errorf("invalid number %q", s)
		}
		*v = N(s)
	case KindB:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("B payload: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("B payload is not base64: %w", err)
		}
		*v = B(b)
	case KindBOOL:
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return fmt.Errorf("BOOL payload: %w", err)
		}
		*v = Bool(b)
	case KindNULL:
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return fmt.Errorf("NULL payload: %w", err)
		}
		*v = Null()
	case KindSS:
		var ss []string
		if err := json.Unmarshal(payload, &ss); err != nil {
			return fmt.Errorf("SS payload: %w", err)
		}
		*v = SS(ss...)
	case KindNS:
		var ns []string
		if err := json.Unmarshal(payload, &ns); err != nil {
			return fmt.Errorf("NS payload: %w", err)
		}
		for _, n := range ns {
			if !ValidNumber(n) {
				return fmt.Errorf("invalid number set member %q", n)
			}
		}
		*v = NS(ns...)
	case KindBS:
		var enc []string
		if err := json.Unmarshal(payload, &enc); err != nil {
			return fmt.Errorf("BS payload: %w", err)
		}
		bs := make([][]byte, len(enc))
		for i, e := range enc {
			b, err := base64.StdEncoding.DecodeString(e)
			if err != nil {
				return fmt.Errorf("BS member is not base64: %w", err)
			}
			bs[i] = b
		}
		*v = BS(bs...)
	case KindL:
		var l []AttributeValue
		if err := json.Unmarshal(payload, &l); err != nil {
			return fmt.Errorf("L payload: %w", err)
		}
		*v = L(l...)
	case KindM:
		var m map[string]AttributeValue
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("M payload: %w", err)
		}
		*v = M(m)
	}
	return nil
}

// SerializeItem encodes an item to its wire form.
func SerializeItem(item Item) ([]byte, error) {
	if item == nil {
		item = Item{}
	}
	return json.Marshal(item)
}

// DeserializeItem decodes wire text back into an item. Failures wrap up as
// a ValidationException so malformed stored or imported data surfaces as a
// client-class error, not a crash.
func DeserializeItem(data []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, New(ErrCodeValidation, fmt.Sprintf("cannot parse item: %v", err))
	}
	return item, nil
}
