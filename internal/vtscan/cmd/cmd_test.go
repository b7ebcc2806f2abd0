package cmd

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"vtscan/internal/analysis"
	"vtscan/internal/binfile/binfiletest"
	"vtscan/internal/report"
)

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

// samplePE writes a PE32 image with vtables at 0x402004 (stored from
// 0x401004 and 0x401010) and 0x40200c (stored from 0x401018).
func samplePE(t *testing.T) string {
	t.Helper()

	code := bytes.Repeat([]byte{0x90}, 0x20)
	copy(code[0x04:], []byte{0xc7, 0x06, 0x04, 0x20, 0x40, 0x00})
	copy(code[0x10:], []byte{0xc7, 0x06, 0x04, 0x20, 0x40, 0x00})
	copy(code[0x18:], []byte{0xc7, 0x00, 0x0c, 0x20, 0x40, 0x00})

	rdata := make([]byte, 20)
	binary.LittleEndian.PutUint32(rdata[4:], 0x401001)
	binary.LittleEndian.PutUint32(rdata[12:], 0x401002)

	return binfiletest.WritePE32(t, 0x400000,
		binfiletest.Section{Name: ".text", Addr: 0x401000, Data: code, Exec: true},
		binfiletest.Section{Name: ".rdata", Addr: 0x402000, Data: rdata},
	)
}

func TestScanJSON(t *testing.T) {
	path := samplePE(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"scan", "--json", "--code", path}, &stdout, &stderr); err != nil {
		t.Fatalf("scan failed: %v\nstderr: %s", err, stderr.String())
	}

	var r report.Report
	if err := json.Unmarshal(stdout.Bytes(), &r); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
	}

	if r.Format != "pe" || r.Bits != 32 || r.File != path {
		t.Errorf("header = %s/%d/%s", r.Format, r.Bits, r.File)
	}
	want := []report.Vtable{
		{Address: "0x402004", Xrefs: []report.Xref{
			{Address: "0x401004", Instruction: "mov dword ptr [esi], 0x402004"},
			{Address: "0x401010", Instruction: "mov dword ptr [esi], 0x402004"},
		}},
		{Address: "0x40200c", Xrefs: []report.Xref{
			{Address: "0x401018", Instruction: "mov dword ptr [eax], 0x40200c"},
		}},
	}
	if diff := cmp.Diff(want, r.Vtables); diff != "" {
		t.Errorf("vtables mismatch (-want +got):\n%s", diff)
	}
}

func TestScanText(t *testing.T) {
	path := samplePE(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "default",
			args: []string{"scan", path},
			want: []string{"2 vtables from 2 candidates", "0x402004 2 xrefs", "  0x401018"},
		},
		{
			name:    "min xrefs",
			args:    []string{"scan", "--min-xrefs", "2", path},
			want:    []string{"0x402004 2 xrefs"},
			notWant: []string{"0x40200c"},
		},
		{
			name: "markdown without a terminal",
			args: []string{"scan", "--markdown", "-C", path},
			want: []string{"## `0x402004`", "- `0x401018` `mov dword ptr [eax], 0x40200c`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(tt.args, &stdout, &stderr); err != nil {
				t.Fatalf("scan failed: %v", err)
			}
			out := stdout.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output lacks %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestScanErrors(t *testing.T) {
	path := samplePE(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no file", args: []string{"scan"}},
		{name: "missing file", args: []string{"scan", path + ".missing"}},
		{name: "conflicting formats", args: []string{"scan", "--json", "--markdown", path}},
		{name: "negative min xrefs", args: []string{"scan", "--min-xrefs", "-1", path}},
		{name: "unknown theme", args: []string{"scan", "--markdown", "--theme", "nope", path}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(tt.args, &stdout, &stderr); err == nil {
				t.Errorf("run(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestScanMissingSection(t *testing.T) {
	path := binfiletest.WritePE32(t, 0x400000,
		binfiletest.Section{Name: ".text", Addr: 0x401000, Data: []byte{0x90, 0xc3}, Exec: true},
	)

	var stdout, stderr bytes.Buffer
	err := run([]string{"scan", path}, &stdout, &stderr)
	if !errors.Is(err, analysis.ErrMissingSection) {
		t.Fatalf("scan error = %v, want ErrMissingSection", err)
	}
}

func TestXrefs(t *testing.T) {
	path := samplePE(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"xrefs", "--code", path, "402004"}, &stdout, &stderr); err != nil {
		t.Fatalf("xrefs failed: %v", err)
	}
	want := "0x401004  mov dword ptr [esi], 0x402004\n0x401010  mov dword ptr [esi], 0x402004\n"
	if diff := cmp.Diff(want, stdout.String()); diff != "" {
		t.Errorf("xrefs output mismatch (-want +got):\n%s", diff)
	}

	stdout.Reset()
	err := run([]string{"xrefs", path, "0x402008"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "0x402008 is not a vtable") {
		t.Errorf("xrefs on a non-vtable error = %v", err)
	}

	if err := run([]string{"xrefs", path, "zz"}, &stdout, &stderr); err == nil {
		t.Error("xrefs with a bad address succeeded")
	}
}

func TestSchema(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"schema"}, want: `"vtables"`},
		{args: []string{"schema", "report"}, want: `"candidates"`},
		{args: []string{"schema", "config"}, want: `"logLevel"`},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(tt.args, &stdout, &stderr); err != nil {
				t.Fatalf("schema failed: %v", err)
			}
			if !json.Valid(stdout.Bytes()) {
				t.Fatalf("schema output is not JSON:\n%s", stdout.String())
			}
			if !strings.Contains(stdout.String(), tt.want) {
				t.Errorf("schema lacks %s", tt.want)
			}
		})
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"schema", "nope"}, &stdout, &stderr); err == nil {
		t.Error("schema nope succeeded")
	}
}

func TestDebugFlagLogs(t *testing.T) {
	path := samplePE(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"scan", "--debug", path}, &stdout, &stderr); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !strings.Contains(stderr.String(), "vtable candidate") {
		t.Errorf("debug log lacks candidates:\n%s", stderr.String())
	}
}
