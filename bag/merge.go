package bag

import "reflect"

// Merge returns a new bag combining base and incoming. Nested bags are merged
// key by key, sequences are concatenated base first, and incoming scalars
// overwrite base scalars. Sequences of different element types concatenate
// into []any. Neither input is modified and the result shares no
// nested bag or sequence with them.
func Merge(base, incoming *Bag) *Bag {
	merged := Copy(base)
	incoming.Range(func(key string, value any) bool {
		current, exists := merged.Get(key)
		merged.entries.Set(key, mergeValue(current, exists, value))
		return true
	})
	return merged
}

func mergeValue(current any, exists bool, value any) any {
	if sub, ok := value.(*Bag); ok {
		existing, _ := current.(*Bag)
		return Merge(existing, sub)
	}
	if isSequence(value) {
		if exists && isSequence(current) {
			return concatSequences(current, value)
		}
		return copySequence(value)
	}
	return value
}

// Copy returns a copy of b in which every nested bag is copied recursively and
// every sequence gets its own backing array. Sequence elements and scalars are
// shared with b.
func Copy(b *Bag) *Bag {
	out := New()
	b.Range(func(key string, value any) bool {
		out.entries.Set(key, copyValue(value))
		return true
	})
	return out
}

func copyValue(value any) any {
	if sub, ok := value.(*Bag); ok {
		return Copy(sub)
	}
	if isSequence(value) {
		return copySequence(value)
	}
	return value
}

func isSequence(value any) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8
}

func copySequence(value any) any {
	rv := reflect.ValueOf(value)
	if rv.IsNil() {
		return value
	}
	clone := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(clone, rv)
	return clone.Interface()
}

// concatSequences appends tail to head. An empty side adopts the other side's
// type, so an untyped empty list decoded from a document does not widen a
// typed registration list to []any.
func concatSequences(head, tail any) any {
	hv := reflect.ValueOf(head)
	tv := reflect.ValueOf(tail)
	if hv.Len() == 0 {
		return copySequence(tail)
	}
	if tv.Len() == 0 {
		return copySequence(head)
	}
	if hv.Type() == tv.Type() {
		out := reflect.MakeSlice(hv.Type(), 0, hv.Len()+tv.Len())
		out = reflect.AppendSlice(out, hv)
		out = reflect.AppendSlice(out, tv)
		return out.Interface()
	}
	out := make([]any, 0, hv.Len()+tv.Len())
	for i := 0; i < hv.Len(); i++ {
		out = append(out, hv.Index(i).Interface())
	}
	for i := 0; i < tv.Len(); i++ {
		out = append(out, tv.Index(i).Interface())
	}
	return out
}
