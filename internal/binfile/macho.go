package binfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
)

func loadMachO(r io.ReaderAt) (*Image, error) {
	f, err := macho.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("open macho: %w", err)
	}
	defer f.Close()

	im := &Image{
		Format:    FormatMachO,
		ByteOrder: binary.LittleEndian,
		aliases:   make(map[string]string),
	}
	switch f.CPU {
	case types.CPUI386:
		im.Bits = 32
	case types.CPUAmd64:
		im.Bits = 64
	default:
		return nil, fmt.Errorf("macho cpu %s: %w", f.CPU, ErrUnsupportedArch)
	}

	for _, s := range f.Sections {
		name := s.Seg + "," + s.Name
		sec := Section{Name: name, Addr: s.Addr, Size: s.Size}
		// Zero-fill sections have no file backing.
		if s.Offset != 0 {
			data, err := s.Data()
			if err != nil {
				return nil, fmt.Errorf("read section %s: %w", name, err)
			}
			sec.Data = data
		}
		im.Sections = append(im.Sections, sec)
	}

	if _, ok := im.Section("__TEXT,__text"); ok {
		im.Alias(CodeSection, "__TEXT,__text")
	}
	for _, name := range []string{"__DATA_CONST,__const", "__TEXT,__const"} {
		if _, ok := im.Section(name); ok {
			im.Alias(RodataSection, name)
			break
		}
	}

	return im, nil
}
