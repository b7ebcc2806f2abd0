package report

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"vtscan/internal/analysis"
	"vtscan/internal/binfile"
)

// sample returns a scanned 32-bit image with two vtables: 0x402004 stored
// from 0x401004 and 0x401010, and 0x40200c stored from 0x401018.
func sample(t *testing.T) (*binfile.Image, *analysis.Context, []uint64) {
	t.Helper()

	code := bytes.Repeat([]byte{0x90}, 0x20)
	copy(code[0x04:], []byte{0xc7, 0x06, 0x04, 0x20, 0x40, 0x00})
	copy(code[0x10:], []byte{0xc7, 0x06, 0x04, 0x20, 0x40, 0x00})
	copy(code[0x18:], []byte{0xc7, 0x00, 0x0c, 0x20, 0x40, 0x00})

	rdata := make([]byte, 20)
	binary.LittleEndian.PutUint32(rdata[4:], 0x401001)
	binary.LittleEndian.PutUint32(rdata[12:], 0x401002)

	im := binfile.New(32, binary.LittleEndian,
		binfile.Section{Name: ".text", Addr: 0x401000, Size: uint64(len(code)), Data: code},
		binfile.Section{Name: ".rdata", Addr: 0x402000, Size: uint64(len(rdata)), Data: rdata},
	)
	im.Path = "/tmp/sample.bin"

	c, err := analysis.NewContextForImage(im)
	if err != nil {
		t.Fatalf("NewContextForImage failed: %v", err)
	}
	vtables, err := analysis.FindVtables(c)
	if err != nil {
		t.Fatalf("FindVtables failed: %v", err)
	}
	return im, c, vtables
}

func TestBuild(t *testing.T) {
	im, c, vtables := sample(t)

	tests := []struct {
		name string
		opts Options
		want []Vtable
	}{
		{
			name: "addresses only",
			want: []Vtable{
				{Address: "0x402004", Xrefs: []Xref{{Address: "0x401004"}, {Address: "0x401010"}}},
				{Address: "0x40200c", Xrefs: []Xref{{Address: "0x401018"}}},
			},
		},
		{
			name: "min xrefs",
			opts: Options{MinXrefs: 2},
			want: []Vtable{
				{Address: "0x402004", Xrefs: []Xref{{Address: "0x401004"}, {Address: "0x401010"}}},
			},
		},
		{
			name: "with code",
			opts: Options{Code: true, MinXrefs: 1},
			want: []Vtable{
				{Address: "0x402004", Xrefs: []Xref{
					{Address: "0x401004", Instruction: "mov dword ptr [esi], 0x402004"},
					{Address: "0x401010", Instruction: "mov dword ptr [esi], 0x402004"},
				}},
				{Address: "0x40200c", Xrefs: []Xref{
					{Address: "0x401018", Instruction: "mov dword ptr [eax], 0x40200c"},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Build(im, c, vtables, tt.opts)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, r.Vtables); diff != "" {
				t.Errorf("Vtables mismatch (-want +got):\n%s", diff)
			}
			if r.Candidates != 2 {
				t.Errorf("Candidates = %d, want 2", r.Candidates)
			}
			wantCode := Section{Name: ".text", Address: "0x401000", Size: 0x20}
			if diff := cmp.Diff(wantCode, r.Code); diff != "" {
				t.Errorf("Code mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildMissingSection(t *testing.T) {
	im := binfile.New(32, binary.LittleEndian, binfile.Section{Name: ".text", Addr: 0x1000, Size: 1})
	c, err := analysis.NewContextForImage(im)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Build(im, c, nil, Options{}); err == nil {
		t.Error("Build() without .rdata succeeded")
	}
}

func TestWriteJSON(t *testing.T) {
	im, c, vtables := sample(t)
	r, err := Build(im, c, vtables, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"file", "format", "bits", "code", "rodata", "candidates", "vtables"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if doc["format"] != "memory" {
		t.Errorf("format = %v, want memory", doc["format"])
	}
	if strings.Contains(buf.String(), "instruction") {
		t.Error("instruction field present without Code option")
	}
}

func TestEmptyReportHasVtablesArray(t *testing.T) {
	r := &Report{}
	r.Vtables = make([]Vtable, 0)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"vtables": []`) {
		t.Errorf("empty vtables not encoded as []: %s", buf.String())
	}
}

func TestLookup(t *testing.T) {
	im, c, vtables := sample(t)
	r, err := Build(im, c, vtables, Options{})
	if err != nil {
		t.Fatal(err)
	}

	v, ok := r.Lookup(0x40200c)
	if !ok || len(v.Xrefs) != 1 {
		t.Errorf("Lookup(0x40200c) = %+v, %v", v, ok)
	}
	if _, ok := r.Lookup(0x402008); ok {
		t.Error("Lookup(0x402008) found a vtable")
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0x40e164", want: 0x40e164},
		{in: "40E164", want: 0x40e164},
		{in: " 0X140010368 ", want: 0x140010368},
		{in: "", wantErr: true},
		{in: "0xzz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHex(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseHex(%q) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	im, c, vtables := sample(t)
	r, err := Build(im, c, vtables, Options{Code: true})
	if err != nil {
		t.Fatal(err)
	}

	md := Markdown(r)
	for _, want := range []string{
		"# sample.bin",
		"memory, 32-bit",
		"| .text | `0x401000` | 32 B |",
		"**2** vtables from **2** candidates",
		"## `0x402004`",
		"- `0x401018` `mov dword ptr [eax], 0x40200c`",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown lacks %q:\n%s", want, md)
		}
	}
}

func TestWriteText(t *testing.T) {
	im, c, vtables := sample(t)
	r, err := Build(im, c, vtables, Options{Code: true})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, r, true); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"sample.bin (memory, 32-bit)",
		"2 vtables from 2 candidates",
		"0x402004 2 xrefs",
		"0x40200c 1 xref\n",
		"  0x401004  mov dword ptr [esi], 0x402004",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("text output contains escape sequences with noColor")
	}
}
