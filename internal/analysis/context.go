package analysis

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"vtscan/internal/binfile"
	"vtscan/internal/disasm"
)

// SectionProvider exposes the named sections of a binary.
type SectionProvider interface {
	Section(name string) (binfile.Section, bool)
}

// Decoder turns machine code at addr into an instruction stream.
type Decoder interface {
	Decode(code []byte, addr uint64, bits int) (disasm.Stream, error)
}

// Context carries the inputs of one binary through detection and owns the
// cross-reference index it produces. A Context is not safe for concurrent
// use.
type Context struct {
	Sections    SectionProvider
	Decoder     Decoder
	PointerSize int
	ByteOrder   binary.ByteOrder
	Idioms      []Idiom
	Logger      *log.Logger

	// Xrefs accumulates across calls to FindVtables until Reset.
	Xrefs *XrefIndex

	insns   disasm.Stream
	decoded bool
}

// NewContext creates a context for a binary with the given pointer width,
// using the x86 decoder and the default idioms.
func NewContext(sections SectionProvider, pointerSize int) (*Context, error) {
	if pointerSize != PointerSize32 && pointerSize != PointerSize64 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedArch, pointerSize)
	}
	return &Context{
		Sections:    sections,
		Decoder:     disasm.X86Decoder{},
		PointerSize: pointerSize,
		ByteOrder:   binary.LittleEndian,
		Idioms:      DefaultIdioms(),
		Logger:      log.New(io.Discard),
		Xrefs:       NewXrefIndex(),
	}, nil
}

// NewContextForImage creates a context for an opened binary.
func NewContextForImage(im *binfile.Image) (*Context, error) {
	c, err := NewContext(im, im.PointerSize())
	if err != nil {
		return nil, err
	}
	if im.ByteOrder != nil {
		c.ByteOrder = im.ByteOrder
	}
	return c, nil
}

// SetInstructions supplies an already decoded stream for the code section,
// bypassing the Decoder.
func (c *Context) SetInstructions(s disasm.Stream) {
	c.insns = s
	c.decoded = true
}

// Reset clears the cross-reference index so detection can run again on
// the same context without duplicating entries.
func (c *Context) Reset() {
	if c.Xrefs != nil {
		c.Xrefs.Reset()
	}
}

// instructions decodes the code section once and caches the stream.
// Decoder errors are returned as is.
func (c *Context) instructions(code binfile.Section) (disasm.Stream, error) {
	if c.decoded {
		return c.insns, nil
	}
	if c.Decoder == nil {
		c.Decoder = disasm.X86Decoder{}
	}
	insns, err := c.Decoder.Decode(code.Data, code.Addr, c.PointerSize*8)
	if err != nil {
		return nil, err
	}
	c.insns = insns
	c.decoded = true
	return insns, nil
}

func (c *Context) logger() *log.Logger {
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
	return c.Logger
}
