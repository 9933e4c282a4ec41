package entry

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Command is the journaled payload of a transition.
//
//	message Command {
//	  string caller = 1;
//	  string target = 2;
//	  bytes  label  = 3;
//	  uint64 amount = 4;
//	}
type Command struct {
	Caller string
	Target string
	Label  []byte
	Amount uint64
}

const (
	fieldCaller protowire.Number = 1
	fieldTarget protowire.Number = 2
	fieldLabel  protowire.Number = 3
	fieldAmount protowire.Number = 4
)

var ErrMalformedCommand = errors.New("entry: malformed command")

func (c Command) Marshal() []byte {
	var b []byte
	if c.Caller != "" {
		b = protowire.AppendTag(b, fieldCaller, protowire.BytesType)
		b = protowire.AppendString(b, c.Caller)
	}
	if c.Target != "" {
		b = protowire.AppendTag(b, fieldTarget, protowire.BytesType)
		b = protowire.AppendString(b, c.Target)
	}
	if c.Label != nil {
		b = protowire.AppendTag(b, fieldLabel, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Label)
	}
	if c.Amount != 0 {
		b = protowire.AppendTag(b, fieldAmount, protowire.VarintType)
		b = protowire.AppendVarint(b, c.Amount)
	}
	return b
}

func UnmarshalCommand(b []byte) (Command, error) {
	var c Command
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldCaller && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Command{}, fmt.Errorf("%w: caller: %v", ErrMalformedCommand, protowire.ParseError(n))
			}
			c.Caller, b = v, b[n:]
		case num == fieldTarget && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Command{}, fmt.Errorf("%w: target: %v", ErrMalformedCommand, protowire.ParseError(n))
			}
			c.Target, b = v, b[n:]
		case num == fieldLabel && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Command{}, fmt.Errorf("%w: label: %v", ErrMalformedCommand, protowire.ParseError(n))
			}
			c.Label, b = append([]byte{}, v...), b[n:]
		case num == fieldAmount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Command{}, fmt.Errorf("%w: amount: %v", ErrMalformedCommand, protowire.ParseError(n))
			}
			c.Amount, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Command{}, fmt.Errorf("%w: field %d: %v", ErrMalformedCommand, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return c, nil
}
