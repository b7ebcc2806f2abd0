package binfile

import (
	"debug/pe"
	"encoding/binary"
	"fmt"
	"io"
)

func loadPE(r io.ReaderAt) (*Image, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("open pe: %w", err)
	}
	defer f.Close()

	im := &Image{
		Format:    FormatPE,
		ByteOrder: binary.LittleEndian,
		aliases:   make(map[string]string),
	}

	var imageBase uint64
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
	}

	switch f.Machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		im.Bits = 32
	case pe.IMAGE_FILE_MACHINE_AMD64:
		im.Bits = 64
	default:
		return nil, fmt.Errorf("pe machine %#x: %w", f.Machine, ErrUnsupportedArch)
	}

	for _, s := range f.Sections {
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", s.Name, err)
		}
		// Raw data is padded to the file alignment; only the virtual
		// size is meaningful.
		if uint32(len(data)) > s.VirtualSize {
			data = data[:s.VirtualSize]
		}
		im.Sections = append(im.Sections, Section{
			Name: s.Name,
			Addr: imageBase + uint64(s.VirtualAddress),
			Size: uint64(s.VirtualSize),
			Data: data,
		})
	}

	return im, nil
}
