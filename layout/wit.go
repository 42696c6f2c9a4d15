package layout

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/dynstruct/internal/abi"
)

// WITCalculator derives component layouts from WIT types using Canonical ABI
// rules. Results for type definitions are cached; a WITCalculator is not safe
// for concurrent use.
type WITCalculator struct {
	cache   map[*wit.TypeDef]Info
	records map[*wit.Record]map[string]uintptr
}

// NewWITCalculator returns a calculator with an empty cache.
func NewWITCalculator() *WITCalculator {
	return &WITCalculator{
		cache:   make(map[*wit.TypeDef]Info),
		records: make(map[*wit.Record]map[string]uintptr),
	}
}

// Combined lays out a WIT header type followed by count elements of a WIT type.
func (c *WITCalculator) Combined(header, elem wit.Type, count int) (Combined, error) {
	return Compute(c.Calculate(header), c.Calculate(elem), count)
}

// FieldOffsets returns the byte offset of each field of r.
func (c *WITCalculator) FieldOffsets(r *wit.Record) map[string]uintptr {
	if offs, ok := c.records[r]; ok {
		return offs
	}
	c.calculateRecord(r)
	return c.records[r]
}

// Calculate returns the Canonical ABI size and alignment of t.
func (c *WITCalculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4} // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *WITCalculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.Variant:
		info = c.calculateVariant(kind)
	case *wit.Enum:
		info = c.calculateEnum(kind)
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Option:
		info = c.calculateOption(kind)
	case *wit.Result:
		info = c.calculateResult(kind)
	case *wit.Tuple:
		info = c.calculateSequence(kind.Types)
	case *wit.Flags:
		info = c.calculateFlags(kind)
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

func (c *WITCalculator) calculateRecord(r *wit.Record) Info {
	offs := make(map[string]uintptr, len(r.Fields))
	c.records[r] = offs
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	maxAlign := uintptr(1)
	offset := uintptr(0)

	for _, field := range r.Fields {
		fieldLayout := c.Calculate(field.Type)

		offset = abi.AlignTo(offset, fieldLayout.Align)
		offs[field.Name] = offset
		maxAlign = max(maxAlign, fieldLayout.Align)
		offset += fieldLayout.Size
	}

	return Info{
		Size:  abi.AlignTo(offset, maxAlign),
		Align: maxAlign,
	}
}

func (c *WITCalculator) calculateSequence(types []wit.Type) Info {
	if len(types) == 0 {
		return Info{Size: 0, Align: 1}
	}

	maxAlign := uintptr(1)
	offset := uintptr(0)

	for _, typ := range types {
		elemLayout := c.Calculate(typ)
		offset = abi.AlignTo(offset, elemLayout.Align)
		maxAlign = max(maxAlign, elemLayout.Align)
		offset += elemLayout.Size
	}

	return Info{
		Size:  abi.AlignTo(offset, maxAlign),
		Align: maxAlign,
	}
}

func (c *WITCalculator) calculateVariant(v *wit.Variant) Info {
	if len(v.Cases) == 0 {
		return Info{Size: 0, Align: 1}
	}

	discSize := uintptr(abi.DiscriminantSize(len(v.Cases)))

	maxAlign := discSize
	caseSize := uintptr(0)

	for _, cs := range v.Cases {
		if cs.Type != nil {
			caseLayout := c.Calculate(cs.Type)
			maxAlign = max(maxAlign, caseLayout.Align)
			caseSize = max(caseSize, caseLayout.Size)
		}
	}

	payloadOffset := abi.AlignTo(discSize, maxAlign)
	return Info{
		Size:  abi.AlignTo(payloadOffset+caseSize, maxAlign),
		Align: maxAlign,
	}
}

func (c *WITCalculator) calculateEnum(e *wit.Enum) Info {
	size := uintptr(abi.DiscriminantSize(len(e.Cases)))
	return Info{Size: size, Align: size}
}

func (c *WITCalculator) calculateOption(o *wit.Option) Info {
	inner := c.Calculate(o.Type)
	maxAlign := max(inner.Align, 1)

	payloadOffset := abi.AlignTo(1, maxAlign)
	return Info{
		Size:  abi.AlignTo(payloadOffset+inner.Size, maxAlign),
		Align: maxAlign,
	}
}

func (c *WITCalculator) calculateResult(r *wit.Result) Info {
	ok := Info{Size: 0, Align: 1}
	if r.OK != nil {
		ok = c.Calculate(r.OK)
	}
	errInfo := Info{Size: 0, Align: 1}
	if r.Err != nil {
		errInfo = c.Calculate(r.Err)
	}

	payload := ok.Max(errInfo)
	payloadOffset := abi.AlignTo(1, payload.Align)
	return Info{
		Size:  abi.AlignTo(payloadOffset+payload.Size, payload.Align),
		Align: payload.Align,
	}
}

func (c *WITCalculator) calculateFlags(f *wit.Flags) Info {
	numFlags := len(f.Flags)

	switch {
	case numFlags == 0:
		return Info{Size: 0, Align: 1}
	case numFlags <= 8:
		return Info{Size: 1, Align: 1}
	case numFlags <= 16:
		return Info{Size: 2, Align: 2}
	}

	// >16 flags: one u32 per 32 flags
	numU32s := (numFlags + 31) / 32
	return Info{Size: uintptr(numU32s * 4), Align: 4}
}
