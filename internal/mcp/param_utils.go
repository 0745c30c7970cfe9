package mcp

import (
	"encoding/json"
	"sort"
)

// UnknownField is an argument the tool did not recognize. It is reported
// back as a warning instead of failing the call.
type UnknownField struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// collectUnknownFields parses raw JSON into a map, capturing any fields
// that aren't part of the provided known field set. nested optionally
// lists the allowed keys of object-valued fields, per array element when
// the field holds an array of objects.
func collectUnknownFields(
	data []byte,
	known map[string]struct{},
	nested map[string]map[string]struct{},
) (map[string]json.RawMessage, []UnknownField, error) {
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	var warnings []UnknownField
	for key, value := range raw {
		if _, ok := known[key]; !ok {
			warnings = append(warnings, decodeUnknownField(key, value))
			continue
		}

		if nestedFields, ok := nested[key]; ok {
			warnings = append(warnings, collectNestedUnknownFields(key, value, nestedFields)...)
		}
	}

	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Name < warnings[j].Name })
	return raw, warnings, nil
}

func decodeUnknownField(name string, data json.RawMessage) UnknownField {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		value = string(data)
	}
	return UnknownField{Name: name, Value: value}
}

func collectNestedUnknownFields(parent string, data json.RawMessage, allowed map[string]struct{}) []UnknownField {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		var warnings []UnknownField
		for _, item := range list {
			warnings = append(warnings, collectNestedUnknownFields(parent, item, allowed)...)
		}
		return warnings
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil
	}

	var warnings []UnknownField
	for key, value := range nested {
		if _, ok := allowed[key]; ok {
			continue
		}
		warnings = append(warnings, decodeUnknownField(parent+"."+key, value))
	}

	return warnings
}
