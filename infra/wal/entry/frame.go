package entry

import (
	"encoding/binary"
	"hash/crc32"
)

// A frame is [type:1][seq:8][time:8][len:4][payload:len][crc:4], all
// big endian. The crc covers everything before it.
const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4
)

type header struct {
	typ        RecordType
	seq        uint64
	time       int64
	payloadLen uint32
}

func (h header) frameSize() int64 {
	return int64(headerSize) + int64(h.payloadLen) + crcSize
}

func decodeHeader(b []byte) header {
	return header{
		typ:        RecordType(b[0]),
		seq:        binary.BigEndian.Uint64(b[1:9]),
		time:       int64(binary.BigEndian.Uint64(b[9:17])),
		payloadLen: binary.BigEndian.Uint32(b[17:21]),
	}
}

func encodeFrame(r *Record) []byte {
	n := len(r.Data)
	buf := make([]byte, headerSize+n+crcSize)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], uint32(n))
	copy(buf[headerSize:], r.Data)

	binary.BigEndian.PutUint32(buf[headerSize+n:], crc32.ChecksumIEEE(buf[:headerSize+n]))
	return buf
}

func checksumValid(headerAndPayload []byte, sum uint32) bool {
	return crc32.ChecksumIEEE(headerAndPayload) == sum
}
