package entry

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Params is the payload of a RecordConfig.
//
//	message Params {
//	  uint32 min_length      = 1;
//	  uint32 max_length      = 2;
//	  uint64 reservation_fee = 3;
//	  string force_clear     = 4;
//	  string slash_to        = 5;
//	}
type Params struct {
	MinLength      uint32
	MaxLength      uint32
	ReservationFee uint64
	ForceClear     string
	SlashTo        string
}

const (
	fieldMinLength      protowire.Number = 1
	fieldMaxLength      protowire.Number = 2
	fieldReservationFee protowire.Number = 3
	fieldForceClear     protowire.Number = 4
	fieldSlashTo        protowire.Number = 5
)

func (p Params) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMinLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.MinLength))
	b = protowire.AppendTag(b, fieldMaxLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.MaxLength))
	b = protowire.AppendTag(b, fieldReservationFee, protowire.VarintType)
	b = protowire.AppendVarint(b, p.ReservationFee)
	b = protowire.AppendTag(b, fieldForceClear, protowire.BytesType)
	b = protowire.AppendString(b, p.ForceClear)
	if p.SlashTo != "" {
		b = protowire.AppendTag(b, fieldSlashTo, protowire.BytesType)
		b = protowire.AppendString(b, p.SlashTo)
	}
	return b
}

func UnmarshalParams(b []byte) (Params, error) {
	var p Params
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Params{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldMinLength || num == fieldMaxLength || num == fieldReservationFee):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Params{}, fmt.Errorf("%w: field %d: %v", ErrMalformedCommand, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldMinLength:
				p.MinLength = uint32(v)
			case fieldMaxLength:
				p.MaxLength = uint32(v)
			default:
				p.ReservationFee = v
			}
		case typ == protowire.BytesType && (num == fieldForceClear || num == fieldSlashTo):
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Params{}, fmt.Errorf("%w: field %d: %v", ErrMalformedCommand, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldForceClear {
				p.ForceClear = v
			} else {
				p.SlashTo = v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Params{}, fmt.Errorf("%w: field %d: %v", ErrMalformedCommand, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}
