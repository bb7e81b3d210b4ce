package audio

import (
	"encoding/binary"
	log "github.com/schollz/logger"
	"io"
	"math"
	"sync"
)

// SampleSize is the byte size of one raw sample in a PCM stream.
const SampleSize = 4

// StreamDevice captures raw little-endian float32 PCM from a reader
// and plays received audio back to a writer in the same format.
// It stands in for a sound card when running headless.
type StreamDevice struct {
	In  io.Reader
	Out io.Writer
}

// Open starts the capture and playback goroutines.
// Closing the returned handle stops both of them.
// A capture goroutine that is blocked in a read exits once the read returns.
func (d *StreamDevice) Open(capture, playback *Queue) (io.Closer, error) {
	h := &streamHandle{done: make(chan struct{})}
	if d.In != nil {
		go h.capture(d.In, capture)
	}
	if d.Out != nil {
		go h.playback(d.Out, playback)
	}
	return h, nil
}

type streamHandle struct {
	done chan struct{}
	once sync.Once
}

func (h *streamHandle) capture(r io.Reader, q *Queue) {
	raw := make([]byte, ChunkSize*SampleSize)
	for {
		n, err := io.ReadFull(r, raw)
		if n >= SampleSize {
			block := DecodePCM(raw[:n-n%SampleSize])
			select {
			case <-h.done:
				return
			default:
			}
			if q.Push(block) != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Errorf("audio: capture stopped: %v", err)
			}
			return
		}
	}
}

func (h *streamHandle) playback(w io.Writer, q *Queue) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-q.Ready():
			var err error
			q.Drain(func(block []Sample) {
				if err == nil {
					_, err = w.Write(EncodePCM(block))
				}
			})
			if err != nil {
				log.Errorf("audio: playback stopped: %v", err)
				return
			}
			if !ok {
				return
			}
		}
	}
}

// Close stops playback immediately. It does not wait for a blocked capture read.
func (h *streamHandle) Close() error {
	h.once.Do(func() {
		close(h.done)
	})
	return nil
}

// DecodePCM converts little-endian float32 bytes to samples.
// Trailing bytes that do not form a whole sample are ignored.
func DecodePCM(raw []byte) []Sample {
	samples := make([]Sample, len(raw)/SampleSize)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*SampleSize:]))
	}
	return samples
}

// EncodePCM converts samples to little-endian float32 bytes.
func EncodePCM(samples []Sample) []byte {
	raw := make([]byte, len(samples)*SampleSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*SampleSize:], math.Float32bits(s))
	}
	return raw
}
