// Package binfiletest writes minimal ELF, PE and Mach-O files for tests.
package binfiletest

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacktop/go-macho/types"
)

// Section is the content of one section to lay out.
type Section struct {
	Name string
	Addr uint64
	Data []byte
	Exec bool
}

// WriteELF32 writes an i386 ELF executable holding sections and returns
// its path.
func WriteELF32(t testing.TB, sections ...Section) string {
	t.Helper()

	const (
		ehsize    = 52
		shentsize = 40
	)

	var body bytes.Buffer
	offsets := make([]uint32, len(sections))
	for i, s := range sections {
		offsets[i] = uint32(ehsize + body.Len())
		body.Write(s.Data)
	}

	shstrtab := []byte{0}
	nameOff := make([]uint32, len(sections))
	for i, s := range sections {
		nameOff[i] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, s.Name...), 0)
	}
	shstrName := uint32(len(shstrtab))
	shstrtab = append(shstrtab, ".shstrtab\x00"...)
	shstrOff := uint32(ehsize + body.Len())
	body.Write(shstrtab)
	for body.Len()%4 != 0 {
		body.WriteByte(0)
	}
	shoff := uint32(ehsize + body.Len())

	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_386),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    ehsize,
		Shentsize: shentsize,
		Shnum:     uint16(len(sections) + 2),
		Shstrndx:  uint16(len(sections) + 1),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	shdrs := []elf.Section32{{}}
	for i, s := range sections {
		flags := uint32(elf.SHF_ALLOC)
		if s.Exec {
			flags |= uint32(elf.SHF_EXECINSTR)
		}
		shdrs = append(shdrs, elf.Section32{
			Name:      nameOff[i],
			Type:      uint32(elf.SHT_PROGBITS),
			Flags:     flags,
			Addr:      uint32(s.Addr),
			Off:       offsets[i],
			Size:      uint32(len(s.Data)),
			Addralign: 1,
		})
	}
	shdrs = append(shdrs, elf.Section32{
		Name:      shstrName,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       shstrOff,
		Size:      uint32(len(shstrtab)),
		Addralign: 1,
	})

	var out bytes.Buffer
	must(t, binary.Write(&out, binary.LittleEndian, hdr))
	out.Write(body.Bytes())
	must(t, binary.Write(&out, binary.LittleEndian, shdrs))

	return write(t, "sample.elf", out.Bytes())
}

// WritePE32 writes an i386 PE image with the given image base and returns
// its path. Section addresses are absolute and must lie above imageBase.
func WritePE32(t testing.TB, imageBase uint32, sections ...Section) string {
	t.Helper()

	const (
		peOffset    = 0x40
		fileAlign   = 0x200
		optHdrSize  = 224
		sectHdrSize = 40
	)

	headersEnd := peOffset + 4 + 20 + optHdrSize + sectHdrSize*len(sections)
	rawOff := uint32(align(headersEnd, fileAlign))

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: optHdrSize,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
	}
	oh := pe.OptionalHeader32{
		Magic:               0x10b,
		ImageBase:           imageBase,
		SectionAlignment:    0x1000,
		FileAlignment:       fileAlign,
		SizeOfHeaders:       rawOff,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes: 16,
	}

	var shdrs []pe.SectionHeader32
	var raw bytes.Buffer
	for _, s := range sections {
		var name [8]uint8
		copy(name[:], s.Name)
		size := align(len(s.Data), fileAlign)
		chars := uint32(pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ)
		if s.Exec {
			chars = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ
		}
		shdrs = append(shdrs, pe.SectionHeader32{
			Name:             name,
			VirtualSize:      uint32(len(s.Data)),
			VirtualAddress:   uint32(s.Addr) - imageBase,
			SizeOfRawData:    uint32(size),
			PointerToRawData: rawOff + uint32(raw.Len()),
			Characteristics:  chars,
		})
		raw.Write(s.Data)
		raw.Write(make([]byte, size-len(s.Data)))
	}

	var out bytes.Buffer
	out.WriteString("MZ")
	out.Write(make([]byte, 0x3c-2))
	must(t, binary.Write(&out, binary.LittleEndian, uint32(peOffset)))
	out.WriteString("PE\x00\x00")
	must(t, binary.Write(&out, binary.LittleEndian, fh))
	must(t, binary.Write(&out, binary.LittleEndian, oh))
	must(t, binary.Write(&out, binary.LittleEndian, shdrs))
	out.Write(make([]byte, int(rawOff)-out.Len()))
	out.Write(raw.Bytes())

	return write(t, "sample.exe", out.Bytes())
}

// WriteMachO writes a little-endian x86 (bits 32) or x86-64 (bits 64)
// Mach-O executable and returns its path. Section names take the form
// "segment,section"; sections sharing a segment name are grouped into one
// segment command in order of first appearance.
func WriteMachO(t testing.TB, bits int, sections ...Section) string {
	t.Helper()

	type segment struct {
		name  string
		sects []Section
	}
	var segs []*segment
	bySeg := make(map[string]*segment)
	for _, s := range sections {
		segName, _, ok := strings.Cut(s.Name, ",")
		if !ok {
			t.Fatalf("mach-o section name %q is not segment,section", s.Name)
		}
		seg, ok := bySeg[segName]
		if !ok {
			seg = &segment{name: segName}
			bySeg[segName] = seg
			segs = append(segs, seg)
		}
		seg.sects = append(seg.sects, s)
	}

	hdr := types.FileHeader{
		Magic:  types.Magic64,
		CPU:    types.CPUAmd64,
		SubCPU: types.CPUSubtypeX86All,
		Type:   types.MH_EXECUTE,
	}
	hdrSize, segSize, sectSize := types.FileHeaderSize64, 72, 80
	cmd := types.LC_SEGMENT_64
	switch bits {
	case 64:
	case 32:
		hdr.Magic, hdr.CPU = types.Magic32, types.CPUI386
		hdrSize, segSize, sectSize = types.FileHeaderSize32, 56, 68
		cmd = types.LC_SEGMENT
	default:
		t.Fatalf("unsupported mach-o bitness %d", bits)
	}

	cmdsSize := 0
	for _, seg := range segs {
		cmdsSize += segSize + sectSize*len(seg.sects)
	}
	hdr.NCommands = uint32(len(segs))
	hdr.SizeCommands = uint32(cmdsSize)

	var cmds, data bytes.Buffer
	dataOff := uint64(hdrSize + cmdsSize)
	for _, seg := range segs {
		var name [16]byte
		copy(name[:], seg.name)

		segOff := dataOff + uint64(data.Len())
		lo, hi := seg.sects[0].Addr, seg.sects[0].Addr
		var sects []any
		for _, s := range seg.sects {
			var sname [16]byte
			copy(sname[:], s.Name[len(seg.name)+1:])
			off := dataOff + uint64(data.Len())
			data.Write(s.Data)
			lo = min(lo, s.Addr)
			hi = max(hi, s.Addr+uint64(len(s.Data)))

			if bits == 64 {
				sects = append(sects, types.Section64{
					Name: sname, Seg: name,
					Addr: s.Addr, Size: uint64(len(s.Data)), Offset: uint32(off),
				})
			} else {
				sects = append(sects, types.Section32{
					Name: sname, Seg: name,
					Addr: uint32(s.Addr), Size: uint32(len(s.Data)), Offset: uint32(off),
				})
			}
		}
		filesz := dataOff + uint64(data.Len()) - segOff

		prot := types.VmProtection(1) // read
		if seg.name == "__TEXT" {
			prot |= 4 // execute
		}
		cmdLen := uint32(segSize + sectSize*len(sects))
		if bits == 64 {
			must(t, binary.Write(&cmds, binary.LittleEndian, types.Segment64{
				LoadCmd: cmd, Len: cmdLen, Name: name,
				Addr: lo, Memsz: hi - lo, Offset: segOff, Filesz: filesz,
				Maxprot: prot, Prot: prot, Nsect: uint32(len(sects)),
			}))
		} else {
			must(t, binary.Write(&cmds, binary.LittleEndian, types.Segment32{
				LoadCmd: cmd, Len: cmdLen, Name: name,
				Addr: uint32(lo), Memsz: uint32(hi - lo), Offset: uint32(segOff), Filesz: uint32(filesz),
				Maxprot: prot, Prot: prot, Nsect: uint32(len(sects)),
			}))
		}
		for _, sh := range sects {
			must(t, binary.Write(&cmds, binary.LittleEndian, sh))
		}
	}

	var head bytes.Buffer
	must(t, binary.Write(&head, binary.LittleEndian, hdr))

	var out bytes.Buffer
	out.Write(head.Bytes()[:hdrSize])
	out.Write(cmds.Bytes())
	out.Write(data.Bytes())

	return write(t, "sample.macho", out.Bytes())
}

func align(n, a int) int {
	return (n + a - 1) / a * a
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func write(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
