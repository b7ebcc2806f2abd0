package binfile

import (
	"debug/elf"
	"fmt"
	"io"
)

func loadELF(r io.ReaderAt) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	im := &Image{
		Format:    FormatELF,
		ByteOrder: f.ByteOrder,
		aliases:   make(map[string]string),
	}
	switch f.Machine {
	case elf.EM_386:
		im.Bits = 32
	case elf.EM_X86_64:
		im.Bits = 64
	default:
		return nil, fmt.Errorf("elf machine %s: %w", f.Machine, ErrUnsupportedArch)
	}

	for _, s := range f.Sections {
		if s.Type == elf.SHT_NULL || s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		sec := Section{Name: s.Name, Addr: s.Addr, Size: s.Size}
		if s.Type != elf.SHT_NOBITS {
			data, err := s.Data()
			if err != nil {
				return nil, fmt.Errorf("read section %s: %w", s.Name, err)
			}
			sec.Data = data
		}
		im.Sections = append(im.Sections, sec)
	}

	// Prefer .rodata; relocated vtables in PIC builds land in .data.rel.ro.
	for _, name := range []string{".rodata", ".data.rel.ro"} {
		if _, ok := im.Section(name); ok {
			im.Alias(RodataSection, name)
			break
		}
	}

	// Fallbacks if stripped of section headers.
	if _, ok := im.Section(CodeSection); !ok {
		if seg, ok := findLoad(f, elf.PF_X, 0); ok {
			if err := im.addSegment("LOAD(exec)", seg); err != nil {
				return nil, err
			}
			im.Alias(CodeSection, "LOAD(exec)")
		}
	}
	if _, ok := im.Section(RodataSection); !ok {
		if seg, ok := findLoad(f, elf.PF_R, elf.PF_W|elf.PF_X); ok {
			if err := im.addSegment("LOAD(ro)", seg); err != nil {
				return nil, err
			}
			im.Alias(RodataSection, "LOAD(ro)")
		}
	}

	return im, nil
}

// findLoad returns the first PT_LOAD segment with all of want and none of
// deny set in its flags.
func findLoad(f *elf.File, want, deny elf.ProgFlag) (*elf.Prog, bool) {
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		if p.Flags&want == want && p.Flags&deny == 0 {
			return p, true
		}
	}
	return nil, false
}

func (im *Image) addSegment(name string, p *elf.Prog) error {
	data := make([]byte, p.Filesz)
	if _, err := p.ReadAt(data, 0); err != nil && err != io.EOF {
		return fmt.Errorf("read segment at %#x: %w", p.Vaddr, err)
	}
	im.Sections = append(im.Sections, Section{
		Name: name,
		Addr: p.Vaddr,
		Size: p.Filesz,
		Data: data,
	})
	return nil
}
