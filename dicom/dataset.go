// Package dicom holds the in-memory dataset model used by the worklist service
// and the little endian codecs that move it on and off the wire.
package dicom

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// VR (Value Representation) constants
const (
	VR_AE = "AE" // Application Entity
	VR_AS = "AS" // Age String
	VR_AT = "AT" // Attribute Tag
	VR_CS = "CS" // Code String
	VR_DA = "DA" // Date
	VR_DS = "DS" // Decimal String
	VR_DT = "DT" // Date Time
	VR_FL = "FL" // Floating Point Single
	VR_FD = "FD" // Floating Point Double
	VR_IS = "IS" // Integer String
	VR_LO = "LO" // Long String
	VR_LT = "LT" // Long Text
	VR_OB = "OB" // Other Byte
	VR_OD = "OD" // Other Double
	VR_OF = "OF" // Other Float
	VR_OL = "OL" // Other Long
	VR_OV = "OV" // Other Very Long
	VR_OW = "OW" // Other Word
	VR_PN = "PN" // Person Name
	VR_SH = "SH" // Short String
	VR_SL = "SL" // Signed Long
	VR_SQ = "SQ" // Sequence of Items
	VR_SS = "SS" // Signed Short
	VR_ST = "ST" // Short Text
	VR_SV = "SV" // Signed Very Long
	VR_TM = "TM" // Time
	VR_UC = "UC" // Unlimited Characters
	VR_UI = "UI" // Unique Identifier
	VR_UL = "UL" // Unsigned Long
	VR_UN = "UN" // Unknown
	VR_UR = "UR" // Universal Resource
	VR_US = "US" // Unsigned Short
	VR_UT = "UT" // Unlimited Text
	VR_UV = "UV" // Unsigned Very Long
)

// Tag represents a DICOM tag (group, element)
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the tag as a string in (GGGG,EEEE) format
func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

func compareTags(a, b Tag) int {
	if c := cmp.Compare(a.Group, b.Group); c != 0 {
		return c
	}
	return cmp.Compare(a.Element, b.Element)
}

// Element represents a DICOM data element.
//
// Value holds a string or []string for text VRs, uint16/uint32 for US/UL,
// []*Dataset for SQ and []byte for everything else.
type Element struct {
	Tag   Tag
	VR    string
	Value interface{}
}

// Dataset represents a collection of DICOM elements
type Dataset struct {
	Elements map[Tag]*Element
}

// NewDataset creates a new empty dataset
func NewDataset() *Dataset {
	return &Dataset{
		Elements: make(map[Tag]*Element),
	}
}

// AddElement adds an element to the dataset, replacing any element with the same tag.
func (d *Dataset) AddElement(tag Tag, vr string, value interface{}) {
	d.Elements[tag] = &Element{
		Tag:   tag,
		VR:    vr,
		Value: value,
	}
}

// AddString adds a text element using the VR from the tag dictionary.
func (d *Dataset) AddString(tag Tag, value string) {
	d.AddElement(tag, VRFor(tag), value)
}

// AddSequence adds an SQ element. Calling it with no items produces an empty
// sequence, which is how type 2 sequences are echoed.
func (d *Dataset) AddSequence(tag Tag, items ...*Dataset) {
	if items == nil {
		items = []*Dataset{}
	}
	d.AddElement(tag, VR_SQ, items)
}

// Has reports whether the dataset contains the tag, with or without a value.
func (d *Dataset) Has(tag Tag) bool {
	_, ok := d.Elements[tag]
	return ok
}

// Len returns the number of top-level elements.
func (d *Dataset) Len() int {
	return len(d.Elements)
}

// Tags returns the dataset's tags in ascending order.
func (d *Dataset) Tags() []Tag {
	tags := make([]Tag, 0, len(d.Elements))
	for tag := range d.Elements {
		tags = append(tags, tag)
	}
	slices.SortFunc(tags, compareTags)
	return tags
}

// GetElement returns an element by tag
func (d *Dataset) GetElement(tag Tag) (*Element, bool) {
	element, exists := d.Elements[tag]
	return element, exists
}

// GetString returns a string value for a tag
func (d *Dataset) GetString(tag Tag) string {
	element, exists := d.Elements[tag]
	if !exists {
		return ""
	}
	switch v := element.Value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.TrimSpace(strings.Join(v, "\\"))
	}
	return ""
}

// GetStrings returns a slice of string values for a tag
func (d *Dataset) GetStrings(tag Tag) []string {
	if element, exists := d.Elements[tag]; exists {
		switch v := element.Value.(type) {
		case string:
			// Split by backslash for multiple values
			parts := strings.Split(v, "\\")
			result := make([]string, len(parts))
			for i, part := range parts {
				result[i] = strings.TrimSpace(part)
			}
			return result
		case []string:
			return v
		}
	}
	return nil
}

// GetUint16 returns a US value for a tag.
func (d *Dataset) GetUint16(tag Tag) (uint16, bool) {
	if element, exists := d.Elements[tag]; exists {
		if v, ok := element.Value.(uint16); ok {
			return v, true
		}
	}
	return 0, false
}

// GetSequence returns the items of an SQ element. The boolean is false when
// the tag is absent or is not a sequence.
func (d *Dataset) GetSequence(tag Tag) ([]*Dataset, bool) {
	element, exists := d.Elements[tag]
	if !exists {
		return nil, false
	}
	items, ok := element.Value.([]*Dataset)
	return items, ok
}

// FirstItem returns the first item of a sequence, or nil.
func (d *Dataset) FirstItem(tag Tag) *Dataset {
	items, _ := d.GetSequence(tag)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

// String renders the dataset for debug logging.
func (d *Dataset) String() string {
	var b strings.Builder
	d.write(&b, "")
	return b.String()
}

func (d *Dataset) write(b *strings.Builder, indent string) {
	for _, tag := range d.Tags() {
		el := d.Elements[tag]
		if items, ok := el.Value.([]*Dataset); ok {
			fmt.Fprintf(b, "%s%s %s %s (%d items)\n", indent, tag, el.VR, Name(tag), len(items))
			for i, item := range items {
				fmt.Fprintf(b, "%s  > item %d\n", indent, i+1)
				item.write(b, indent+"    ")
			}
			continue
		}
		fmt.Fprintf(b, "%s%s %s %s [%v]\n", indent, tag, el.VR, Name(tag), el.Value)
	}
}
