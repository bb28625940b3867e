package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OptionLabel is one of the four fixed choice labels.
type OptionLabel string

const (
	OptionLabelA OptionLabel = "A"
	OptionLabelB OptionLabel = "B"
	OptionLabelC OptionLabel = "C"
	OptionLabelD OptionLabel = "D"
)

// OptionLabels lists the labels in display order.
var OptionLabels = []OptionLabel{OptionLabelA, OptionLabelB, OptionLabelC, OptionLabelD}

// Valid reports whether the label is one of A–D.
func (l OptionLabel) Valid() bool {
	switch l {
	case OptionLabelA, OptionLabelB, OptionLabelC, OptionLabelD:
		return true
	}
	return false
}

// QuestionKind tags the two rendering variants of a question.
type QuestionKind string

const (
	// QuestionKindText renders the prompt as text with labeled options.
	QuestionKindText QuestionKind = "TEXT"
	// QuestionKindImage renders one composite image covering the whole
	// question (screenshot mode).
	QuestionKindImage QuestionKind = "IMAGE"
)

// FlexibleID accepts both numeric and string identifiers on the wire.
// The original question feed uses SQLite row IDs; identifiers are opaque
// to this service either way.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

// IntBool accepts 0/1 as well as JSON booleans. The original feed stores
// flags as SQLite integers.
type IntBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *IntBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean flag: %s", data)
	}
	return nil
}

// QuestionRecord is the wire format served by the question endpoint.
type QuestionRecord struct {
	ID            FlexibleID `json:"id"`
	Question      string     `json:"question"`
	QuestionImage string     `json:"question_image"`
	OptionA       string     `json:"option_a"`
	OptionB       string     `json:"option_b"`
	OptionC       string     `json:"option_c"`
	OptionD       string     `json:"option_d"`
	OptionAImage  string     `json:"option_a_image"`
	OptionBImage  string     `json:"option_b_image"`
	OptionCImage  string     `json:"option_c_image"`
	OptionDImage  string     `json:"option_d_image"`
	HasDiagram    IntBool    `json:"has_diagram"`
}

// Option is a single labeled choice. Text and image are both optional;
// an option with neither is not renderable.
type Option struct {
	Label    OptionLabel `json:"label"`
	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
}

// Renderable reports whether the option has any content to display.
func (o Option) Renderable() bool {
	return o.Text != "" || o.ImageURL != ""
}

// Question is the immutable session-side form of a question. The kind is
// selected once when the record is loaded, not re-derived during render.
type Question struct {
	ID         string       `json:"id"`
	Kind       QuestionKind `json:"kind"`
	Prompt     string       `json:"prompt,omitempty"`
	ImageURL   string       `json:"image_url,omitempty"`
	Options    []Option     `json:"options"`
	HasDiagram bool         `json:"has_diagram"`
}

// RenderableOptions returns the options that carry text or an image,
// preserving label order.
func (q Question) RenderableOptions() []Option {
	out := make([]Option, 0, len(q.Options))
	for _, o := range q.Options {
		if o.Renderable() {
			out = append(out, o)
		}
	}
	return out
}

// HasAnyImage reports whether the question or any of its options carries
// an image reference.
func (q Question) HasAnyImage() bool {
	if q.ImageURL != "" {
		return true
	}
	for _, o := range q.Options {
		if o.ImageURL != "" {
			return true
		}
	}
	return false
}

// QuestionFromRecord maps a wire record to the tagged variant.
func QuestionFromRecord(rec QuestionRecord) Question {
	q := Question{
		ID:         string(rec.ID),
		Prompt:     rec.Question,
		ImageURL:   rec.QuestionImage,
		HasDiagram: bool(rec.HasDiagram),
		Options: []Option{
			{Label: OptionLabelA, Text: rec.OptionA, ImageURL: rec.OptionAImage},
			{Label: OptionLabelB, Text: rec.OptionB, ImageURL: rec.OptionBImage},
			{Label: OptionLabelC, Text: rec.OptionC, ImageURL: rec.OptionCImage},
			{Label: OptionLabelD, Text: rec.OptionD, ImageURL: rec.OptionDImage},
		},
	}

	if rec.QuestionImage != "" {
		q.Kind = QuestionKindImage
	} else {
		q.Kind = QuestionKindText
	}

	return q
}
