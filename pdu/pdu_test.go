package pdu

import (
	"bytes"
	"errors"
	"io"
	"testing"

	dicomerrors "github.com/caio-sobreiro/dicomworklist/errors"
	"github.com/caio-sobreiro/dicomworklist/types"
)

func TestPDUTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant byte
		expected byte
	}{
		{"Associate-RQ", TypeAssociateRQ, 0x01},
		{"Associate-AC", TypeAssociateAC, 0x02},
		{"Associate-RJ", TypeAssociateRJ, 0x03},
		{"P-DATA-TF", TypePDataTF, 0x04},
		{"Release-RQ", TypeReleaseRQ, 0x05},
		{"Release-RP", TypeReleaseRP, 0x06},
		{"Abort", TypeAbort, 0x07},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("%s = 0x%02x, want 0x%02x", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

func TestWriteReadPDU(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDU(&buf, TypeReleaseRQ, ReleaseBody()); err != nil {
		t.Fatalf("WritePDU() error = %v", err)
	}
	want := []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded % x, want % x", buf.Bytes(), want)
	}

	pdu, err := ReadPDU(&buf)
	if err != nil {
		t.Fatalf("ReadPDU() error = %v", err)
	}
	if pdu.Type != TypeReleaseRQ || pdu.Length != 4 || len(pdu.Data) != 4 {
		t.Errorf("unexpected PDU %+v", pdu)
	}
}

func TestReadPDUErrors(t *testing.T) {
	if _, err := ReadPDU(bytes.NewReader(nil)); !errors.Is(err, io.EOF) {
		t.Errorf("empty input error = %v, want EOF", err)
	}

	truncated := []byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x10, 0x01}
	if _, err := ReadPDU(bytes.NewReader(truncated)); err == nil {
		t.Error("expected error for truncated body")
	}

	huge := []byte{0x04, 0x00, 0x7F, 0xFF, 0xFF, 0xFF}
	var pduErr *dicomerrors.PDUError
	if _, err := ReadPDU(bytes.NewReader(huge)); !errors.As(err, &pduErr) {
		t.Errorf("oversized PDU error = %v, want PDUError", err)
	}
}

func TestPDataTFRoundTrip(t *testing.T) {
	in := []PDV{
		{ContextID: 1, Control: types.PDVCommand | types.PDVLastFragment, Data: []byte{1, 2, 3, 4}},
		{ContextID: 1, Control: types.PDVLastFragment, Data: []byte{5, 6}},
	}
	out, err := ParsePDataTF(EncodePDataTF(in...))
	if err != nil {
		t.Fatalf("ParsePDataTF() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 PDVs, got %d", len(out))
	}
	if !out[0].IsCommand() || !out[0].IsLast() || !bytes.Equal(out[0].Data, in[0].Data) {
		t.Errorf("first PDV = %+v", out[0])
	}
	if out[1].IsCommand() || !out[1].IsLast() || !bytes.Equal(out[1].Data, in[1].Data) {
		t.Errorf("second PDV = %+v", out[1])
	}
}

func TestParsePDataTFErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", []byte{0x00, 0x00, 0x00}},
		{"length too short", []byte{0x00, 0x00, 0x00, 0x01, 0x01, 0x03}},
		{"length exceeds", []byte{0x00, 0x00, 0x00, 0x10, 0x01, 0x03, 0xAA}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePDataTF(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFragment(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 25)

	tests := []struct {
		name      string
		maxPDU    uint32
		wantSizes []int
	}{
		{"unlimited", 0, []int{25}},
		{"fits", 100, []int{25}},
		{"split", 16, []int{10, 10, 5}},
		{"exact", 31, []int{25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdvs := Fragment(3, true, data, tt.maxPDU)
			if len(pdvs) != len(tt.wantSizes) {
				t.Fatalf("got %d fragments, want %d", len(pdvs), len(tt.wantSizes))
			}
			var joined []byte
			for i, p := range pdvs {
				if len(p.Data) != tt.wantSizes[i] {
					t.Errorf("fragment %d size = %d, want %d", i, len(p.Data), tt.wantSizes[i])
				}
				if p.ContextID != 3 || !p.IsCommand() {
					t.Errorf("fragment %d header = %+v", i, p)
				}
				if p.IsLast() != (i == len(pdvs)-1) {
					t.Errorf("fragment %d last flag = %v", i, p.IsLast())
				}
				if tt.maxPDU > 0 && uint32(len(EncodePDataTF(p))) > tt.maxPDU {
					t.Errorf("fragment %d exceeds max PDU", i)
				}
				joined = append(joined, p.Data...)
			}
			if !bytes.Equal(joined, data) {
				t.Error("fragments do not reassemble to input")
			}
		})
	}
}

func TestFragmentEmpty(t *testing.T) {
	pdvs := Fragment(1, false, nil, 16)
	if len(pdvs) != 1 || !pdvs[0].IsLast() || pdvs[0].IsCommand() || len(pdvs[0].Data) != 0 {
		t.Errorf("unexpected fragments %+v", pdvs)
	}
}

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, 5, []byte{1, 2}, []byte{3, 4, 5, 6}, 0); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	var got []PDV
	for buf.Len() > 0 {
		pdu, err := ReadPDU(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if pdu.Type != TypePDataTF {
			t.Fatalf("unexpected PDU type 0x%02x", pdu.Type)
		}
		pdvs, err := ParsePDataTF(pdu.Data)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, pdvs...)
	}
	if len(got) != 2 || !got[0].IsCommand() || got[1].IsCommand() {
		t.Fatalf("unexpected PDVs %+v", got)
	}

	buf.Reset()
	if err := WriteMessage(&buf, 5, []byte{1, 2}, nil, 0); err != nil {
		t.Fatal(err)
	}
	pdu, _ := ReadPDU(&buf)
	if pdu == nil || buf.Len() != 0 {
		t.Error("expected exactly one PDU for a command without data set")
	}
}

func TestAbortEncoding(t *testing.T) {
	a := Abort{Source: AbortSourceServiceProvider, Reason: AbortReasonUnexpectedPDU}
	if got := ParseAbort(a.Encode()); got != a {
		t.Errorf("ParseAbort() = %+v, want %+v", got, a)
	}
	if got := ParseAbort([]byte{0x00}); got != (Abort{}) {
		t.Errorf("short abort = %+v", got)
	}
}
