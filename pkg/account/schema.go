package account

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

var (
	// ErrUnknownField is returned when a schema has no field of that name.
	ErrUnknownField = errors.New("unknown schema field")

	// ErrFieldKind is returned when a field is accessed as the wrong kind.
	ErrFieldKind = errors.New("wrong field kind")
)

// FieldKind identifies the wire type of a schema field.
type FieldKind int

// Supported field kinds. All integers are little-endian.
const (
	FieldPubkey FieldKind = iota // 32 bytes
	FieldU64                     // 8 bytes
	FieldU8                      // 1 byte
	FieldBool                    // 1 byte, 0 or 1
)

// width returns the encoded size of the field kind in bytes.
func (k FieldKind) width() int {
	switch k {
	case FieldPubkey:
		return types.PubkeySize
	case FieldU64:
		return 8
	case FieldU8, FieldBool:
		return 1
	default:
		panic(fmt.Sprintf("unknown field kind %d", k))
	}
}

// Field declares one named field of a record schema.
type Field struct {
	Name string
	Kind FieldKind
}

// fieldInfo is the resolved layout of a field.
type fieldInfo struct {
	kind   FieldKind
	offset int // relative to the start of the record body, after the tag
}

// Schema describes the fixed layout of a record type: an 8-byte
// discriminator followed by the declared fields at sequential offsets.
// Offsets and widths are fixed at schema-definition time.
type Schema struct {
	name   string
	fields []Field
	layout map[string]fieldInfo
	size   int
}

// NewSchema defines a record schema. Field offsets are assigned in
// declaration order. Duplicate field names panic: schemas are program
// constants, so a duplicate is a programming error.
func NewSchema(name string, fields ...Field) *Schema {
	s := &Schema{
		name:   name,
		fields: fields,
		layout: make(map[string]fieldInfo, len(fields)),
	}
	offset := 0
	for _, f := range fields {
		if _, dup := s.layout[f.Name]; dup {
			panic(fmt.Sprintf("schema %s: duplicate field %s", name, f.Name))
		}
		s.layout[f.Name] = fieldInfo{kind: f.Kind, offset: offset}
		offset += f.Kind.width()
	}
	s.size = offset
	return s
}

// Name returns the record type name the discriminator is derived from.
func (s *Schema) Name() string {
	return s.name
}

// Size returns the full record size: discriminator plus all fields.
func (s *Schema) Size() int {
	return DiscriminatorSize + s.size
}

// Discriminator returns the schema's 8-byte type tag.
func (s *Schema) Discriminator() [DiscriminatorSize]byte {
	return Discriminator(s.name)
}

// field resolves a field by name and checks its kind.
func (s *Schema) field(name string, kind FieldKind) (fieldInfo, error) {
	info, ok := s.layout[name]
	if !ok {
		return fieldInfo{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.name, name)
	}
	if info.kind != kind {
		return fieldInfo{}, fmt.Errorf("%w: %s.%s", ErrFieldKind, s.name, name)
	}
	return info, nil
}
