package models

import (
	"bytes"
	"sort"
)

// ValueKind identifies which variant of an AttributeValue is populated.
// Exactly one kind is ever set; the zero value KindInvalid only occurs for
// an AttributeValue that was never constructed.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindS
	KindN
	KindB
	KindBOOL
	KindNULL
	KindSS
	KindNS
	KindBS
	KindL
	KindM
)

var kindNames = map[ValueKind]string{
	KindS:    "S",
	KindN:    "N",
	KindB:    "B",
	KindBOOL: "BOOL",
	KindNULL: "NULL",
	KindSS:   "SS",
	KindNS:   "NS",
	KindBS:   "BS",
	KindL:    "L",
	KindM:    "M",
}

func (k ValueKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "INVALID"
}

// KindFromTag maps a wire type tag ("S", "NS", ...) back to its kind.
func KindFromTag(tag string) (ValueKind, bool) {
	for k, n := range kindNames {
		if n == tag {
			return k, true
		}
	}
	return KindInvalid, false
}

// AttributeValue is the item value type: a sum of the ten DynamoDB-style
// variants. The tag is explicit data, so an ambiguous or empty-but-typed
// value is representable and a value with two variants is not. Construct
// values through S, N, B, Bool, Null, SS, NS, BS, L and M.
type AttributeValue struct {
	kind ValueKind
	str  string           // S and N (numbers keep their exact decimal text)
	bin  []byte           // B
	b    bool             // BOOL
	strs []string         // SS and NS
	bins [][]byte         // BS
	list []AttributeValue // L
	m    map[string]AttributeValue // M
}

// Item is an attribute-name to value mapping. A nil Item means "no item".
type Item = map[string]AttributeValue

// S returns a string value.
func S(v string) AttributeValue { return AttributeValue{kind: KindS, str: v} }

// N returns a number value. The decimal text is kept verbatim so nothing is
// lost on round-trip; validity is enforced where numbers are consumed
// (codec, key extraction, comparison, arithmetic).
func N(v string) AttributeValue { return AttributeValue{kind: KindN, str: v} }

// B returns a binary value.
func B(v []byte) AttributeValue { return AttributeValue{kind: KindB, bin: v} }

// Bool returns a boolean value.
func Bool(v bool) AttributeValue { return AttributeValue{kind: KindBOOL, b: v} }

// Null returns the null value.
func Null() AttributeValue { return AttributeValue{kind: KindNULL} }

// SS returns a string set. Duplicates are dropped, first occurrence wins.
func SS(vs ...string) AttributeValue {
	return AttributeValue{kind: KindSS, strs: dedupStrings(vs)}
}

// NS returns a number set. Members are de-duplicated by numeric value, so
// "1" and "1.0" collapse to one member.
func NS(vs ...string) AttributeValue {
	seen := make(map[string]bool, len(vs))
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		key := v
		if norm, err := NormalizeNumber(v); err == nil {
			key = norm
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return AttributeValue{kind: KindNS, strs: out}
}

// BS returns a binary set, de-duplicated bytewise.
func BS(vs ...[]byte) AttributeValue {
	out := make([][]byte, 0, len(vs))
	for _, v := range vs {
		dup := false
		for _, e := range out {
			if bytes.Equal(e, v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return AttributeValue{kind: KindBS, bins: out}
}

// L returns a list value. An empty call yields an empty list, not null.
func L(vs ...AttributeValue) AttributeValue {
	if vs == nil {
		vs = []AttributeValue{}
	}
	return AttributeValue{kind: KindL, list: vs}
}

// M returns a map value.
func M(m map[string]AttributeValue) AttributeValue {
	if m == nil {
		m = map[string]AttributeValue{}
	}
	return AttributeValue{kind: KindM, m: m}
}

// Kind reports which variant is populated.
func (v AttributeValue) Kind() ValueKind { return v.kind }

// IsValid reports whether the value was constructed at all.
func (v AttributeValue) IsValid() bool { return v.kind != KindInvalid }

func (v AttributeValue) AsString() (string, bool) { return v.str, v.kind == KindS }

func (v AttributeValue) AsNumber() (string, bool) { return v.str, v.kind == KindN }

func (v AttributeValue) AsBinary() ([]byte, bool) { return v.bin, v.kind == KindB }

func (v AttributeValue) AsBool() (bool, bool) { return v.b, v.kind == KindBOOL }

func (v AttributeValue) IsNull() bool { return v.kind == KindNULL }

func (v AttributeValue) AsStringSet() ([]string, bool) { return v.strs, v.kind == KindSS }

func (v AttributeValue) AsNumberSet() ([]string, bool) { return v.strs, v.kind == KindNS }

func (v AttributeValue) AsBinarySet() ([][]byte, bool) { return v.bins, v.kind == KindBS }

func (v AttributeValue) AsList() ([]AttributeValue, bool) { return v.list, v.kind == KindL }

func (v AttributeValue) AsMap() (map[string]AttributeValue, bool) { return v.m, v.kind == KindM }

// IsSet reports whether the value is one of the three set variants.
func (v AttributeValue) IsSet() bool {
	return v.kind == KindSS || v.kind == KindNS || v.kind == KindBS
}

// Length returns the size() of the value: byte length for S and B, member
// count for sets, element count for L and key count for M. The second
// return is false for kinds size() is undefined on.
func (v AttributeValue) Length() (int, bool) {
	switch v.kind {
	case KindS:
		return len(v.str), true
	case KindB:
		return len(v.bin), true
	case KindSS, KindNS:
		return len(v.strs), true
	case KindBS:
		return len(v.bins), true
	case KindL:
		return len(v.list), true
	case KindM:
		return len(v.m), true
	}
	return 0, false
}

// Equal reports deep equality. Sets compare order-insensitively and number
// sets by numeric value, matching the service's set semantics.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindS:
		return v.str == o.str
	case KindN:
		c, err := CompareNumbers(v.str, o.str)
		if err != nil {
			return v.str == o.str
		}
		return c == 0
	case KindB:
		return bytes.Equal(v.bin, o.bin)
	case KindBOOL:
		return v.b == o.b
	case KindNULL:
		return true
	case KindSS:
		return equalStringSets(v.strs, o.strs)
	case KindNS:
		return equalNumberSets(v.strs, o.strs)
	case KindBS:
		return equalBinarySets(v.bins, o.bins)
	case KindL:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindM:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := o.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Copy returns a deep copy; mutating the copy never touches the original.
func (v AttributeValue) Copy() AttributeValue {
	out := v
	switch v.kind {
	case KindB:
		out.bin = append([]byte(nil), v.bin...)
	case KindSS, KindNS:
		out.strs = append([]string(nil), v.strs...)
	case KindBS:
		out.bins = make([][]byte, len(v.bins))
		for i, b := range v.bins {
			out.bins[i] = append([]byte(nil), b...)
		}
	case KindL:
		out.list = make([]AttributeValue, len(v.list))
		for i, e := range v.list {
			out.list[i] = e.Copy()
		}
	case KindM:
		out.m = make(map[string]AttributeValue, len(v.m))
		for k, e := range v.m {
			out.m[k] = e.Copy()
		}
	}
	return out
}

// CopyItem deep-copies an item. A nil item stays nil.
func CopyItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v.Copy()
	}
	return out
}

// ItemsEqual compares two items with Equal per attribute.
func ItemsEqual(a, b Item) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

func dedupStrings(vs []string) []string {
	seen := make(map[string]bool, len(vs))
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func equalNumberSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	norm := func(vs []string) []string {
		out := make([]string, len(vs))
		for i, v := range vs {
			if n, err := NormalizeNumber(v); err == nil {
				out[i] = n
			} else {
				out[i] = v
			}
		}
		sort.Strings(out)
		return out
	}
	as, bs := norm(a), norm(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func equalBinarySets(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, av := range a {
		for i, bv := range b {
			if !used[i] && bytes.Equal(av, bv) {
				used[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}
