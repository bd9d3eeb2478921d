package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// AudioSource opens the microphone for one utterance. The returned reader
// yields 16-bit little-endian mono PCM and reports io.EOF when the speaker is
// done. Closing it releases the device and unblocks a pending Read.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// AudioSourceFunc adapts a function to [AudioSource].
type AudioSourceFunc func(ctx context.Context) (io.ReadCloser, error)

// Open calls f.
func (f AudioSourceFunc) Open(ctx context.Context) (io.ReadCloser, error) { return f(ctx) }

// FileSource replays a recording as the utterance. Raw PCM and WAV files are
// accepted; for WAV the reader is positioned at the start of the data chunk.
type FileSource string

// Open opens the file.
func (f FileSource) Open(context.Context) (io.ReadCloser, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("speech: open audio file: %w", err)
	}
	if err := seekWAVData(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("speech: read wav header %s: %w", f, err)
	}
	return file, nil
}

var errNoDataChunk = errors.New("no data chunk")

// seekWAVData leaves r at the first PCM byte. Files without a RIFF/WAVE
// header are rewound and treated as raw PCM.
func seekWAVData(r io.ReadSeeker) error {
	var hdr [12]byte
	_, err := io.ReadFull(r, hdr[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	if err != nil || !bytes.Equal(hdr[0:4], []byte("RIFF")) || !bytes.Equal(hdr[8:12], []byte("WAVE")) {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return errNoDataChunk
		}
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		if bytes.Equal(chunk[0:4], []byte("data")) {
			return nil
		}
		if _, err := r.Seek(size+size%2, io.SeekCurrent); err != nil {
			return err
		}
	}
}
