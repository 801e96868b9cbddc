// Package archive encodes and decodes the module archive envelope quillc
// ships between builds: a magic header followed by length-delimited
// sections. The checker itself never touches this format; it consumes the
// decoded rows.
package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/oxhq/quill/models"
)

// Magic prefixes every quill module archive.
const Magic = "QAR1"

type descriptor struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// Encode serializes a module row into the envelope: descriptor, API header,
// the four export tables, then the target blob, each section prefixed with
// its uvarint length.
func Encode(m *models.Module) ([]byte, error) {
	desc, err := json.Marshal(descriptor{Namespace: m.Namespace, Name: m.Name})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(Magic)
	for _, section := range [][]byte{
		desc,
		[]byte(m.APIHeader),
		m.Types,
		m.Procedures,
		m.Initializers,
		m.Unwrappers,
		m.TargetBlob,
	} {
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(section)))
		buf.Write(lenBuf[:n])
		buf.Write(section)
	}
	return buf.Bytes(), nil
}

// Decode parses an envelope back into a module row.
func Decode(data []byte) (*models.Module, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("not a quill module archive")
	}
	rest := data[len(Magic):]
	sections := make([][]byte, 0, 7)
	for i := 0; i < 7; i++ {
		size, n := binary.Uvarint(rest)
		if n <= 0 || uint64(len(rest)-n) < size {
			return nil, fmt.Errorf("truncated archive: section %d", i)
		}
		sections = append(sections, rest[n:n+int(size)])
		rest = rest[n+int(size):]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing bytes after archive envelope")
	}

	var desc descriptor
	if err := json.Unmarshal(sections[0], &desc); err != nil {
		return nil, fmt.Errorf("invalid archive descriptor: %w", err)
	}
	m := &models.Module{
		Namespace:    desc.Namespace,
		Name:         desc.Name,
		APIHeader:    string(sections[1]),
		Types:        append([]byte(nil), sections[2]...),
		Procedures:   append([]byte(nil), sections[3]...),
		Initializers: append([]byte(nil), sections[4]...),
		Unwrappers:   append([]byte(nil), sections[5]...),
		TargetBlob:   append([]byte(nil), sections[6]...),
	}
	return m, nil
}
