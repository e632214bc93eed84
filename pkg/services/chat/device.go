package chat

import (
	"context"
	"io"
	"sync"
)

const dftChunkSize = 16 * 1024

// Microphone opens exclusive capture streams
type Microphone interface {
	// Supported reports whether the runtime can capture audio at all
	Supported() bool
	// Open asks for access and starts capturing, a refusal is an error
	Open(ctx context.Context) (AudioStream, error)
}

// AudioStream delivers captured chunks until stopped. Stop finalizes the
// capture, releases the device and closes the Chunks channel after the last
// chunk. It may be called more than once.
type AudioStream interface {
	Chunks() <-chan []byte
	Stop() error
}

// ReaderMicrophone captures from whatever its open func returns, such as an
// audio file or a pipe from an external recorder.
type ReaderMicrophone struct {
	open      func() (io.ReadCloser, error)
	chunkSize int
}

func NewReaderMicrophone(open func() (io.ReadCloser, error), chunkSize int) *ReaderMicrophone {
	if chunkSize <= 0 {
		chunkSize = dftChunkSize
	}
	return &ReaderMicrophone{open: open, chunkSize: chunkSize}
}

func (m *ReaderMicrophone) Supported() bool {
	return m != nil && m.open != nil
}

func (m *ReaderMicrophone) Open(ctx context.Context) (AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := m.open()
	if err != nil {
		return nil, err
	}
	rs := &readerStream{
		rc:   rc,
		ch:   make(chan []byte),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go rs.run(m.chunkSize)
	return rs, nil
}

type readerStream struct {
	rc   io.ReadCloser
	ch   chan []byte
	quit chan struct{}
	done chan struct{}
	once sync.Once
	err  error
}

func (rs *readerStream) Chunks() <-chan []byte {
	return rs.ch
}

func (rs *readerStream) run(size int) {
	defer close(rs.done)
	defer close(rs.ch)
	for {
		buf := make([]byte, size)
		n, err := rs.rc.Read(buf)
		if n > 0 {
			select {
			case rs.ch <- buf[:n]:
			case <-rs.quit:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				logger().Infow("audio read fail", "err", err)
			}
			return
		}
		select {
		case <-rs.quit:
			return
		default:
		}
	}
}

func (rs *readerStream) Stop() error {
	rs.once.Do(func() {
		close(rs.quit)
		rs.err = rs.rc.Close()
	})
	<-rs.done
	return rs.err
}
