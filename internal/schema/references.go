package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// References maps a referencing column key to the column keys it references.
// Keys keep their insertion order, which is also their order in the YAML file.
// The zero value is an empty map ready to use.
type References struct {
	keys    []string
	targets map[string][]string
}

// Len returns the number of keys
func (r References) Len() int {
	return len(r.keys)
}

// IsZero lets yaml omitempty drop an empty map
func (r References) IsZero() bool {
	return len(r.keys) == 0
}

// Keys returns the referencing keys in insertion order
func (r References) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Has reports whether key is present
func (r References) Has(key string) bool {
	_, ok := r.targets[key]
	return ok
}

// Get returns the referenced keys of key
func (r References) Get(key string) []string {
	return r.targets[key]
}

// Set replaces the referenced keys of key, adding key at the end if new
func (r *References) Set(key string, targets []string) {
	if r.targets == nil {
		r.targets = make(map[string][]string)
	}
	if _, ok := r.targets[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.targets[key] = append([]string(nil), targets...)
}

// Append adds target to the list of key, creating the list if absent
func (r *References) Append(key, target string) {
	if r.targets == nil {
		r.targets = make(map[string][]string)
	}
	if _, ok := r.targets[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.targets[key] = append(r.targets[key], target)
}

// AppendUnique is Append that skips a target already listed under key.
// It reports whether the target was added.
func (r *References) AppendUnique(key, target string) bool {
	for _, existing := range r.targets[key] {
		if existing == target {
			return false
		}
	}
	r.Append(key, target)
	return true
}

// Delete removes key
func (r *References) Delete(key string) {
	if _, ok := r.targets[key]; !ok {
		return
	}
	delete(r.targets, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Each calls fn for every (key, referenced key) pair in order
func (r References) Each(fn func(key, target string)) {
	for _, key := range r.keys {
		for _, target := range r.targets[key] {
			fn(key, target)
		}
	}
}

func (r References) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range r.keys {
		list := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, target := range r.targets[key] {
			list.Content = append(list.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: target})
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			list,
		)
	}
	return node, nil
}

func (r *References) UnmarshalYAML(value *yaml.Node) error {
	*r = References{}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: references must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, listNode := value.Content[i], value.Content[i+1]
		var targets []string
		if err := listNode.Decode(&targets); err != nil {
			return fmt.Errorf("line %d: references of '%s': %w", listNode.Line, keyNode.Value, err)
		}
		if r.Has(keyNode.Value) {
			return fmt.Errorf("line %d: duplicate reference key '%s'", keyNode.Line, keyNode.Value)
		}
		r.Set(keyNode.Value, targets)
	}
	return nil
}
