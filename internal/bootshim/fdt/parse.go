package fdt

import (
	"encoding/binary"
	"fmt"
)

// Parse decodes an FDT blob into a Node tree. Property values are reported
// as raw Bytes; callers that know a property's expected width use
// Property.AsU32/AsU64 to reinterpret it.
func Parse(blob []byte) (Node, error) {
	if len(blob) < headerSize {
		return Node{}, fmt.Errorf("fdt: blob too short for header (%d bytes)", len(blob))
	}
	if got := binary.BigEndian.Uint32(blob[0:4]); got != magic {
		return Node{}, fmt.Errorf("fdt: bad magic %#x", got)
	}
	offStruct := binary.BigEndian.Uint32(blob[8:12])
	offStrings := binary.BigEndian.Uint32(blob[12:16])
	structSize := binary.BigEndian.Uint32(blob[36:40])

	if uint64(offStruct)+uint64(structSize) > uint64(len(blob)) {
		return Node{}, fmt.Errorf("fdt: struct block overruns blob")
	}
	if int(offStrings) > len(blob) {
		return Node{}, fmt.Errorf("fdt: strings offset overruns blob")
	}

	p := &parser{
		structure: blob[offStruct : offStruct+structSize],
		strings:   blob[offStrings:],
	}

	tok, err := p.nextToken()
	if err != nil {
		return Node{}, err
	}
	if tok != beginNodeToken {
		return Node{}, fmt.Errorf("fdt: expected root FDT_BEGIN_NODE, got %#x", tok)
	}
	root, err := p.parseNode()
	if err != nil {
		return Node{}, err
	}
	return root, nil
}

type parser struct {
	structure []byte
	strings   []byte
	pos       int
}

func (p *parser) nextToken() (uint32, error) {
	v, err := p.readU32()
	return v, err
}

func (p *parser) readU32() (uint32, error) {
	if p.pos+4 > len(p.structure) {
		return 0, fmt.Errorf("fdt: unexpected end of struct block")
	}
	v := binary.BigEndian.Uint32(p.structure[p.pos : p.pos+4])
	p.pos += 4
	return v, nil
}

func (p *parser) readCString() (string, error) {
	start := p.pos
	for p.pos < len(p.structure) && p.structure[p.pos] != 0 {
		p.pos++
	}
	if p.pos >= len(p.structure) {
		return "", fmt.Errorf("fdt: unterminated name string")
	}
	s := string(p.structure[start:p.pos])
	p.pos++ // skip NUL
	p.align4()
	return s, nil
}

func (p *parser) align4() {
	for p.pos%4 != 0 {
		p.pos++
	}
}

// parseNode consumes a node body (everything after its FDT_BEGIN_NODE
// token and name, which the caller already read) through its matching
// FDT_END_NODE.
func (p *parser) parseNode() (Node, error) {
	name, err := p.readCString()
	if err != nil {
		return Node{}, err
	}
	n := Node{Name: name}

	for {
		tok, err := p.nextToken()
		if err != nil {
			return Node{}, err
		}
		switch tok {
		case propToken:
			propName, value, err := p.parseProperty()
			if err != nil {
				return Node{}, err
			}
			if n.Properties == nil {
				n.Properties = make(map[string]Property)
			}
			n.Properties[propName] = Property{Bytes: value}
		case beginNodeToken:
			child, err := p.parseNode()
			if err != nil {
				return Node{}, err
			}
			n.Children = append(n.Children, child)
		case endNodeToken:
			return n, nil
		case endToken:
			return n, nil
		default:
			return Node{}, fmt.Errorf("fdt: unexpected token %#x in node %q", tok, name)
		}
	}
}

func (p *parser) parseProperty() (string, []byte, error) {
	length, err := p.readU32()
	if err != nil {
		return "", nil, err
	}
	nameOff, err := p.readU32()
	if err != nil {
		return "", nil, err
	}
	name, err := p.lookupString(nameOff)
	if err != nil {
		return "", nil, err
	}
	if p.pos+int(length) > len(p.structure) {
		return "", nil, fmt.Errorf("fdt: property %q value overruns struct block", name)
	}
	value := append([]byte(nil), p.structure[p.pos:p.pos+int(length)]...)
	p.pos += int(length)
	p.align4()
	return name, value, nil
}

func (p *parser) lookupString(off uint32) (string, error) {
	if int(off) >= len(p.strings) {
		return "", fmt.Errorf("fdt: string offset %d out of range", off)
	}
	end := off
	for int(end) < len(p.strings) && p.strings[end] != 0 {
		end++
	}
	return string(p.strings[off:end]), nil
}
