package entry

import (
	"errors"
	"io"
	"os"
)

// maxSeqInSegment returns the highest seq in a closed segment by reading
// headers only. Used for truncation after a snapshot.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var highest uint64
	buf := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return highest, nil
			}
			return highest, err
		}
		h := decodeHeader(buf)
		highest = max(highest, h.seq)
		if _, err := f.Seek(h.frameSize()-headerSize, io.SeekCurrent); err != nil {
			return highest, err
		}
	}
}
