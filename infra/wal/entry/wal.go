package entry

import (
	"os"
	"time"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// SyncWrites fsyncs the segment after every append.
	SyncWrites bool
}

type WAL struct {
	cfg        Config
	current    *segment
	segIndex   int
	lastRotate time.Time
}

// Open opens the journal in cfg.Dir, continuing the newest segment.
// A torn record at the end of that segment is cut off first.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 2 * 1024 * 1024
	}

	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	idx := 0
	if len(files) > 0 {
		last := files[len(files)-1]
		if idx, err = segmentIndex(last); err != nil {
			return nil, err
		}
		if err := truncateTornTail(last); err != nil {
			return nil, err
		}
	}

	seg, err := openSegment(cfg.Dir, idx)
	if err != nil {
		return nil, err
	}

	return &WAL{
		cfg:        cfg,
		current:    seg,
		segIndex:   idx,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	buf := encodeFrame(r)

	if err := w.current.append(buf); err != nil {
		return err
	}
	if w.cfg.SyncWrites {
		if err := w.current.sync(); err != nil {
			return err
		}
	}

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.current.offset >= w.cfg.SegmentSize {
		return true
	}
	return w.cfg.SegmentDuration > 0 && time.Since(w.lastRotate) >= w.cfg.SegmentDuration
}

func (w *WAL) rotate() error {
	_ = w.current.sync()
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.cfg.Dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// Dir is the directory the segments live in.
func (w *WAL) Dir() string {
	return w.cfg.Dir
}

func (w *WAL) Sync() error {
	return w.current.sync()
}

func (w *WAL) Close() error {
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

// TruncateBefore removes closed segments whose records all have
// seq <= seq. The segment being written is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	files, err := segments(w.cfg.Dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == w.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}
