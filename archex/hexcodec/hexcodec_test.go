package hexcodec

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
)

func TestDecodeRawLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []byte
		wantErr bool
	}{
		{"empty", "", []byte{}, false},
		{"newline only", "\n", []byte{}, false},
		{"magic", "41524348\n", []byte("ARCH"), false},
		{"crlf", "4152\r\n", []byte("AR"), false},
		{"upper and lower case", "aAfF", []byte{0xaa, 0xff}, false},
		{"odd length", "415\n", nil, true},
		{"bad pair", "41zz", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRawLine(tt.line)
			if tt.wantErr {
				if !errors.Is(err, archexerrors.ErrMalformedLine) {
					t.Fatalf("DecodeRawLine() error = %v, want MALFORMED_LINE", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRawLine() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeRawLine() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestDecodeDumpLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []byte
		wantErr bool
	}{
		{
			name: "full xxd line",
			line: "00000000: 4152 4348 0100 0000 0561 2e74 7874 0000  ARCH.....a.txt..\n",
			want: []byte{0x41, 0x52, 0x43, 0x48, 0x01, 0x00, 0x00, 0x00, 0x05, 0x61, 0x2e, 0x74, 0x78, 0x74, 0x00, 0x00},
		},
		{
			name: "short final line",
			line: "00000010: 0102 03                                  ...",
			want: []byte{1, 2, 3},
		},
		{
			name: "single spaced pairs",
			line: "0: 41 52 43 48",
			want: []byte("ARCH"),
		},
		{
			name: "gutter made of hex-like letters is not decoded",
			line: "00000000: 4142  AB",
			want: []byte{0x41, 0x42},
		},
		{
			name: "blank",
			line: "   \n",
			want: nil,
		},
		{
			name:    "missing colon",
			line:    "00000000 4152",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDumpLine(tt.line)
			if tt.wantErr {
				if !errors.Is(err, archexerrors.ErrMalformedLine) {
					t.Fatalf("DecodeDumpLine() error = %v, want MALFORMED_LINE", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDumpLine() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeDumpLine() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestModeForName(t *testing.T) {
	tests := []struct {
		name    string
		want    Mode
		wantErr bool
	}{
		{"archive.hex", ModeRaw, false},
		{"dir/ARCHIVE.HEX", ModeRaw, false},
		{"archive.txt", ModeDump, false},
		{"archive.bin", 0, true},
		{"archive", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ModeForName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, archexerrors.ErrUnsupportedFormat) {
					t.Fatalf("ModeForName() error = %v, want UNSUPPORTED_FORMAT", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ModeForName() = %v, %v, want %v", got, err, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("auto", "a.txt"); err != nil || m != ModeDump {
		t.Errorf("ParseMode(auto) = %v, %v", m, err)
	}
	if m, err := ParseMode("raw", "a.txt"); err != nil || m != ModeRaw {
		t.Errorf("ParseMode(raw) = %v, %v", m, err)
	}
	if m, err := ParseMode("xxd", "a.bin"); err != nil || m != ModeDump {
		t.Errorf("ParseMode(xxd) = %v, %v", m, err)
	}
	if _, err := ParseMode("base64", "a.hex"); err == nil {
		t.Error("ParseMode(base64) should fail")
	}
}

func TestReader_ReportsLineNumber(t *testing.T) {
	r := NewReader(strings.NewReader("4152\n4348\n012\n"), ModeRaw)

	for i := 0; i < 2; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatalf("Next() line %d error = %v", i+1, err)
		}
	}

	_, err := r.Next()
	if !errors.Is(err, archexerrors.ErrMalformedLine) {
		t.Fatalf("Next() error = %v, want MALFORMED_LINE", err)
	}
	if line, ok := archexerrors.GetDetail(err, "line"); !ok || line != 3 {
		t.Errorf("line detail = %v, want 3", line)
	}
}

func TestReader_EOF(t *testing.T) {
	r := NewReader(strings.NewReader(""), ModeDump)
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next() on empty input = %v, want io.EOF", err)
	}
}

func decodeAll(t *testing.T, text string, mode Mode) []byte {
	t.Helper()
	r := NewReader(strings.NewReader(text), mode)
	var out []byte
	for {
		b, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, b...)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := []int{0, 1, 15, 16, 17, 255, 1024}

	for _, size := range sizes {
		data := make([]byte, size)
		rng.Read(data)

		var raw bytes.Buffer
		if err := EncodeRaw(&raw, data, 7); err != nil {
			t.Fatalf("EncodeRaw() error = %v", err)
		}
		if got := decodeAll(t, raw.String(), ModeRaw); !bytes.Equal(got, data) {
			t.Errorf("raw round trip of %d bytes mismatched", size)
		}

		var dump bytes.Buffer
		if err := EncodeDump(&dump, data); err != nil {
			t.Fatalf("EncodeDump() error = %v", err)
		}
		if got := decodeAll(t, dump.String(), ModeDump); !bytes.Equal(got, data) {
			t.Errorf("dump round trip of %d bytes mismatched:\n%s", size, dump.String())
		}
	}
}
