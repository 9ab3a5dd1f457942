package androidtv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// RuleObject is a state-keyed rule object that keeps its states in the
// order they were written. Conditions maps each state to its condition
// object.
type RuleObject struct {
	States     []string
	Conditions map[string]any
}

// MarshalJSON writes the object with its states in order.
func (o RuleObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, state := range o.States {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(state)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(o.Conditions[state])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeRules decodes a JSON rule list the way json.Unmarshal decodes into
// an any, except that the rule objects in the list become RuleObjects. A
// bare object outside a list is a RuleObject too.
func DecodeRules(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeRuleValue(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding rules: unexpected data after value")
	}
	return v, nil
}

func decodeRuleValue(dec *json.Decoder, depth int) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '[':
		list := []any{}
		for dec.More() {
			v, err := decodeRuleValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil

	case '{':
		obj := RuleObject{Conditions: make(map[string]any)}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := keyTok.(string)
			v, err := decodeRuleValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			if _, dup := obj.Conditions[key]; !dup {
				obj.States = append(obj.States, key)
			}
			obj.Conditions[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		if depth <= 1 {
			return obj, nil
		}
		return obj.Conditions, nil

	default:
		return nil, fmt.Errorf("unexpected %v", delim)
	}
}
