// Package binfile opens ELF, PE and Mach-O binaries and exposes their
// sections as address-tagged byte snapshots.
package binfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Canonical section names. Every loader registers its code and read-only
// data sections under these names in addition to their native names.
const (
	CodeSection   = ".text"
	RodataSection = ".rdata"
)

var (
	// ErrUnknownFormat is returned when the file magic is not recognized.
	ErrUnknownFormat = errors.New("unknown binary format")
	// ErrUnsupportedArch is returned for binaries that are not x86 or x86-64.
	ErrUnsupportedArch = errors.New("unsupported architecture")
)

// Format names the container format of an Image.
type Format string

const (
	FormatELF    Format = "elf"
	FormatPE     Format = "pe"
	FormatMachO  Format = "macho"
	FormatMemory Format = "memory"
)

// Section is an immutable snapshot of one section.
type Section struct {
	Name string
	Addr uint64
	Size uint64
	Data []byte
}

// Contains reports whether va lies inside the section.
func (s Section) Contains(va uint64) bool {
	return va >= s.Addr && va-s.Addr < s.Size
}

// End returns the address one past the last byte of the section.
func (s Section) End() uint64 {
	return s.Addr + s.Size
}

// Image is a loaded binary: its sections plus the canonical names that
// alias them.
type Image struct {
	Path      string
	Format    Format
	Bits      int
	ByteOrder binary.ByteOrder
	Sections  []Section
	aliases   map[string]string
}

// New builds an in-memory image from already extracted sections.
func New(bits int, order binary.ByteOrder, sections ...Section) *Image {
	return &Image{
		Format:    FormatMemory,
		Bits:      bits,
		ByteOrder: order,
		Sections:  sections,
		aliases:   make(map[string]string),
	}
}

// Open detects the container format of path and loads it.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}

	var im *Image
	switch {
	case bytes.Equal(magic[:], []byte("\x7fELF")):
		im, err = loadELF(f)
	case magic[0] == 'M' && magic[1] == 'Z':
		im, err = loadPE(f)
	case isMachOMagic(magic):
		im, err = loadMachO(f)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return nil, err
	}
	im.Path = path
	return im, nil
}

func isMachOMagic(m [4]byte) bool {
	v := binary.LittleEndian.Uint32(m[:])
	switch v {
	case 0xfeedface, 0xfeedfacf, 0xcefaedfe, 0xcffaedfe:
		return true
	}
	return false
}

// Section looks up a section by native name, then by canonical alias.
func (im *Image) Section(name string) (Section, bool) {
	for _, s := range im.Sections {
		if s.Name == name {
			return s, true
		}
	}
	if native, ok := im.aliases[name]; ok {
		for _, s := range im.Sections {
			if s.Name == native {
				return s, true
			}
		}
	}
	return Section{}, false
}

// Alias registers canonical as another name for the native section.
func (im *Image) Alias(canonical, native string) {
	if im.aliases == nil {
		im.aliases = make(map[string]string)
	}
	im.aliases[canonical] = native
}

// PointerSize returns the pointer width in bytes.
func (im *Image) PointerSize() int {
	return im.Bits / 8
}

// ReadVA returns up to n bytes starting at va from the section containing
// it. It returns false if va is not backed by section data.
func (im *Image) ReadVA(va uint64, n int) ([]byte, bool) {
	for _, s := range im.Sections {
		if !s.Contains(va) {
			continue
		}
		off := va - s.Addr
		if off >= uint64(len(s.Data)) {
			return nil, false
		}
		end := off + uint64(n)
		if end > uint64(len(s.Data)) {
			end = uint64(len(s.Data))
		}
		return s.Data[off:end], true
	}
	return nil, false
}
