package entry

import "time"

type RecordType uint8

const (
	RecordSet RecordType = iota + 1
	RecordClear
	RecordForceSet
	RecordForceClear
	RecordEndow
	// RecordGenesis endows without authorization; only written once,
	// into an empty journal.
	RecordGenesis
	// RecordConfig carries the registry constants a store was created
	// with. It is the first record of every journal.
	RecordConfig
)

func (t RecordType) String() string {
	switch t {
	case RecordSet:
		return "set"
	case RecordClear:
		return "clear"
	case RecordForceSet:
		return "force_set"
	case RecordForceClear:
		return "force_clear"
	case RecordEndow:
		return "endow"
	case RecordGenesis:
		return "genesis"
	case RecordConfig:
		return "config"
	default:
		return "unknown"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
