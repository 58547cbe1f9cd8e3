package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentkernel/internal/util"
)

// FromStruct builds a Descriptor whose ArgsSchema is derived from the struct
// type A and whose Func receives the arguments already decoded into A.
//
// Example:
//
//	type sumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sum := FromStruct("calculate_sum", "Add two numbers.",
//	  func(_ context.Context, in sumArgs) (any, error) {
//	    return map[string]any{"sum": in.A + in.B}, nil
//	  })
//
// Arguments that cannot be decoded into A fail with a validation_error.
func FromStruct[A any](name, summary string, fn func(ctx context.Context, args A) (any, error), optFns ...func(d *Descriptor)) Descriptor {
	var zero A

	d := Descriptor{
		Name:       name,
		Summary:    summary,
		ArgsSchema: util.CreateSchema(zero),
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			in, err := decodeArgs[A](args)
			if err != nil {
				return nil, &Error{Tool: name, Kind: KindValidation, Message: err.Error(), cause: err}
			}
			return fn(ctx, in)
		},
	}

	for _, fn := range optFns {
		fn(&d)
	}

	return d
}

func decodeArgs[A any](args map[string]any) (A, error) {
	var out A

	data, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("encode arguments: %w", err)
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}

	return out, nil
}
