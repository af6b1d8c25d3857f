package safeq

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Filter trees decode from the JSON shape request handlers receive:
//
//	{"logic": "and", "items": [
//	    {"field": "status", "op": "eq", "value": "active"},
//	    {"logic": "or", "items": [
//	        {"field": "qty", "op": "gte", "value": 10},
//	        {"field": "expiry", "op": "isNull"}
//	    ]}
//	]}
//
// Values are coerced into the discriminated union operator-aware: a
// two-element array under between/notBetween becomes a range, any other
// array stays an array. Shape mismatches surface later as construction
// errors when the tree is validated.

func (g *FilterGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Logic string       `json:"logic"`
		Items []FilterItem `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Logic {
	case string(LogicOr), "OR", "Or":
		g.Logic = LogicOr
	case string(LogicAnd), "AND", "And", "":
		g.Logic = LogicAnd
	default:
		return fmt.Errorf("safeq: unknown group logic %q", raw.Logic)
	}
	g.Items = raw.Items
	return nil
}

func (it *FilterItem) UnmarshalJSON(data []byte) error {
	var probe struct {
		Logic *string `json:"logic"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Logic != nil {
		var g FilterGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		it.Group = &g
		it.Cond = nil
		return nil
	}
	var f Filter
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	it.Cond = &f
	it.Group = nil
	return nil
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field string          `json:"field"`
		Op    string          `json:"op"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Field = raw.Field
	f.Op = Operator(raw.Op)
	v, err := decodeJSONValue(f.Op, raw.Value)
	if err != nil {
		return err
	}
	f.Value = v
	return nil
}

func decodeJSONValue(op Operator, raw json.RawMessage) (FilterValue, error) {
	if len(raw) == 0 {
		return FilterValue{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return FilterValue{}, err
	}
	switch x := v.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case json.Number:
		return numberValue(x), nil
	case []any:
		elems := make([]any, len(x))
		for i, e := range x {
			if n, ok := e.(json.Number); ok {
				elems[i] = numberValue(n).scalar()
			} else {
				elems[i] = e
			}
		}
		if (op == OperatorBetween || op == OperatorNotBetween) && len(elems) == 2 {
			return RangeValue(elems[0], elems[1]), nil
		}
		return ArrayValue(elems...), nil
	default:
		return FilterValue{}, fmt.Errorf("safeq: unsupported JSON value for operator %q", op)
	}
}

func numberValue(n json.Number) FilterValue {
	if i, err := n.Int64(); err == nil {
		return IntValue(i)
	}
	f, _ := n.Float64()
	return FloatValue(f)
}
