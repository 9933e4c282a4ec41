package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrCorruptRecord = errors.New("entry: crc mismatch")
	// ErrSeqGap means records between the snapshot and the journal, or
	// inside the journal, are missing.
	ErrSeqGap = errors.New("entry: sequence gap")
)

type ReplayHandler func(*Record) error

// Replay feeds every record with seq > after to fn, in order, and
// returns the highest seq seen (or after if none is newer). Those
// records must continue after without a hole. A torn record at the very
// end of the newest segment ends the replay.
func Replay(dir string, after uint64, fn ReplayHandler) (uint64, error) {
	files, err := segments(dir)
	if err != nil {
		return after, err
	}

	lastSeq := after
	var prev uint64
	for i, path := range files {
		tail := i == len(files)-1
		err := replaySegment(path, func(rec *Record) error {
			if rec.Seq <= prev {
				return fmt.Errorf("entry: non-monotonic seq %d after %d in %s", rec.Seq, prev, path)
			}
			prev = rec.Seq
			if rec.Seq <= after {
				return nil
			}
			if rec.Seq != lastSeq+1 {
				return fmt.Errorf("%w: expected %d, found %d in %s", ErrSeqGap, lastSeq+1, rec.Seq, path)
			}
			lastSeq = rec.Seq
			return fn(rec)
		})
		if err != nil {
			if tail && errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return lastSeq, err
		}
	}

	return lastSeq, nil
}

func replaySegment(path string, fn ReplayHandler) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	h := decodeHeader(buf)

	rest := make([]byte, int(h.payloadLen)+crcSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := rest[:h.payloadLen]
	sum := binary.BigEndian.Uint32(rest[h.payloadLen:])
	if !checksumValid(append(buf, payload...), sum) {
		return nil, ErrCorruptRecord
	}

	return &Record{
		Type: h.typ,
		Seq:  h.seq,
		Time: h.time,
		Data: payload,
	}, nil
}

// truncateTornTail cuts a partially written record off the end of path.
func truncateTornTail(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	var valid int64
	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return f.Truncate(valid)
		}
		if err != nil {
			return err
		}
		valid += header{payloadLen: uint32(len(rec.Data))}.frameSize()
	}
}
