package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Answer is a collected answer value: a string, or a list of strings for
// multi-choice questions. It serializes as a bare JSON string or array.
type Answer struct {
	Text    string
	Choices []string
	Multi   bool
}

// TextAnswer builds a single-value answer
func TextAnswer(s string) Answer {
	return Answer{Text: s}
}

// ChoicesAnswer builds a multi-choice answer
func ChoicesAnswer(choices ...string) Answer {
	if choices == nil {
		choices = []string{}
	}
	return Answer{Choices: choices, Multi: true}
}

// IsEmpty reports whether nothing was provided
func (a Answer) IsEmpty() bool {
	if a.Multi {
		return len(a.Choices) == 0
	}
	return strings.TrimSpace(a.Text) == ""
}

// String renders the raw value; multi-choice joins with ", "
func (a Answer) String() string {
	if a.Multi {
		return strings.Join(a.Choices, ", ")
	}
	return a.Text
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		choices := a.Choices
		if choices == nil {
			choices = []string{}
		}
		return json.Marshal(choices)
	}
	return json.Marshal(a.Text)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*a = Answer{}
	case string:
		*a = TextAnswer(t)
	case float64:
		*a = TextAnswer(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*a = TextAnswer(strconv.FormatBool(t))
	case []interface{}:
		choices := make([]string, 0, len(t))
		for _, item := range t {
			choices = append(choices, fmt.Sprint(item))
		}
		*a = ChoicesAnswer(choices...)
	default:
		return fmt.Errorf("unsupported answer value %s", string(data))
	}
	return nil
}

// MarshalBSONValue stores the answer as a BSON string or string array.
func (a Answer) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if a.Multi {
		choices := a.Choices
		if choices == nil {
			choices = []string{}
		}
		return bson.MarshalValue(choices)
	}
	return bson.MarshalValue(a.Text)
}

func (a *Answer) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*a = Answer{}
	case bsontype.String:
		*a = TextAnswer(raw.StringValue())
	case bsontype.Array:
		var choices []string
		if err := raw.Unmarshal(&choices); err != nil {
			return err
		}
		*a = ChoicesAnswer(choices...)
	default:
		*a = TextAnswer(raw.String())
	}
	return nil
}
