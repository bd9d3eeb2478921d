package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// wav builds a RIFF/WAVE file with an odd-sized padding chunk before data.
func wav(pcm []byte) []byte {
	var b bytes.Buffer
	chunk := func(id string, body []byte) {
		b.WriteString(id)
		_ = binary.Write(&b, binary.LittleEndian, uint32(len(body)))
		b.Write(body)
		if len(body)%2 == 1 {
			b.WriteByte(0)
		}
	}
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString("WAVE")
	chunk("fmt ", make([]byte, 16))
	chunk("LIST", []byte{1, 2, 3})
	chunk("data", pcm)
	return b.Bytes()
}

func readSource(t *testing.T, content []byte) ([]byte, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "utterance")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rc, err := FileSource(path).Open(context.Background())
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func TestFileSource(t *testing.T) {
	t.Parallel()
	pcm := []byte{0x10, 0x00, 0x20, 0x00, 0x30, 0x00}

	tests := []struct {
		name    string
		content []byte
		want    []byte
		wantErr error
	}{
		{name: "wav skips header chunks", content: wav(pcm), want: pcm},
		{name: "raw pcm", content: pcm, want: pcm},
		{name: "short raw file", content: []byte{1, 2}, want: []byte{1, 2}},
		{name: "empty file", content: nil, want: []byte{}},
		{name: "wav without data", content: wav(nil)[:12+8+16], wantErr: errNoDataChunk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readSource(t, tt.content)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("pcm = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileSource_Missing(t *testing.T) {
	t.Parallel()
	_, err := FileSource(filepath.Join(t.TempDir(), "nope.wav")).Open(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestAudioSourceFunc(t *testing.T) {
	t.Parallel()
	called := false
	src := AudioSourceFunc(func(context.Context) (io.ReadCloser, error) {
		called = true
		return io.NopCloser(bytes.NewReader(nil)), nil
	})
	if _, err := src.Open(context.Background()); err != nil || !called {
		t.Errorf("Open: err=%v called=%v", err, called)
	}
}
