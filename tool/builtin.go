package tool

import (
	"context"
	"slices"
)

type textArgs struct {
	Text string `json:"text" description:"Input text"`
}

// Echo returns the input text unchanged.
func Echo() Descriptor {
	return FromStruct("echo", "Return the same text.",
		func(_ context.Context, in textArgs) (any, error) {
			return map[string]any{"text": in.Text}, nil
		},
		pureText,
	)
}

// ReverseString returns the input text reversed rune by rune.
func ReverseString() Descriptor {
	return FromStruct("reverse_string", "Return the reversed text.",
		func(_ context.Context, in textArgs) (any, error) {
			r := []rune(in.Text)
			slices.Reverse(r)
			return map[string]any{"text": string(r)}, nil
		},
		pureText,
	)
}

func pureText(d *Descriptor) {
	d.ReturnsSchema = map[string]any{"text": "string"}
	d.SideEffects = []string{}
	d.Idempotent = true
}
