package bag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// MarshalJSON encodes the bag as a JSON object preserving key order. Values
// that cannot be represented in JSON (funcs, channels) are rendered as their
// type name, e.g. "<patcher.Callback>".
func (b *Bag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.encodable())
}

// UnmarshalJSON decodes a JSON object into the bag, replacing its contents.
// Key order of the document is preserved at every level. Integral numbers
// decode as int, the rest as float64.
func (b *Bag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		b.entries = orderedmap.New[string, any]()
		return nil
	}
	decoded, err := decodeJSONObject(data)
	if err != nil {
		return fmt.Errorf("bag: decode json: %w", err)
	}
	b.entries = decoded.entries
	return nil
}

func decodeJSONObject(data []byte) (*Bag, error) {
	if len(data) == 0 || data[0] != '{' {
		return nil, errors.New("expected an object")
	}
	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	out := New()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		key := pair.Key
		value, err := decodeJSONValue(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out.entries.Set(key, value)
	}
	return out, nil
}

func decodeJSONValue(data json.RawMessage) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty value")
	}
	switch data[0] {
	case '{':
		return decodeJSONObject(data)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		items := make([]any, 0, len(raw))
		for _, item := range raw {
			value, err := decodeJSONValue(item)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		return items, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if number, ok := value.(json.Number); ok {
		if i, err := strconv.ParseInt(number.String(), 10, 0); err == nil {
			return int(i), nil
		}
		return number.Float64()
	}
	return value, nil
}

// MarshalYAML implements yaml.Marshaler.
func (b *Bag) MarshalYAML() (any, error) {
	return b.yamlNode()
}

// UnmarshalYAML implements yaml.Unmarshaler, preserving mapping key order.
func (b *Bag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			b.entries = orderedmap.New[string, any]()
			return nil
		}
		node = node.Content[0]
	}
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		b.entries = orderedmap.New[string, any]()
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("bag: line %d: expected a mapping", node.Line)
	}
	decoded, err := decodeMapping(node)
	if err != nil {
		return err
	}
	b.entries = decoded.entries
	return nil
}

func decodeMapping(node *yaml.Node) (*Bag, error) {
	out := New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		var key string
		if err := keyNode.Decode(&key); err != nil {
			return nil, fmt.Errorf("bag: line %d: key: %w", keyNode.Line, err)
		}
		value, err := decodeNode(valueNode)
		if err != nil {
			return nil, err
		}
		out.entries.Set(key, value)
	}
	return out, nil
}

func decodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	case yaml.MappingNode:
		return decodeMapping(node)
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := decodeNode(child)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	default:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("bag: line %d: %w", node.Line, err)
		}
		return value, nil
	}
}

func (b *Bag) encodable() *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	b.Range(func(key string, value any) bool {
		out.Set(key, encodableValue(value))
		return true
	})
	return out
}

func encodableValue(value any) any {
	if sub, ok := value.(*Bag); ok {
		return sub.encodable()
	}
	if isSequence(value) {
		rv := reflect.ValueOf(value)
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = encodableValue(rv.Index(i).Interface())
		}
		return items
	}
	if opaque(value) {
		return fmt.Sprintf("<%T>", value)
	}
	return value
}

func (b *Bag) yamlNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	var err error
	b.Range(func(key string, value any) bool {
		var child *yaml.Node
		child, err = yamlValue(value)
		if err != nil {
			return false
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			child,
		)
		return true
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func yamlValue(value any) (*yaml.Node, error) {
	if sub, ok := value.(*Bag); ok {
		return sub.yamlNode()
	}
	if isSequence(value) {
		rv := reflect.ValueOf(value)
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i := 0; i < rv.Len(); i++ {
			child, err := yamlValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	}
	if opaque(value) {
		value = fmt.Sprintf("<%T>", value)
	}
	node := &yaml.Node{}
	if err := node.Encode(value); err != nil {
		return nil, fmt.Errorf("bag: encode %T: %w", value, err)
	}
	return node, nil
}

func opaque(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}
