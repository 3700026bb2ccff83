// Package sniff classifies a location history export from the first bytes of
// the file, before any streaming parse is started. It is a byte-level
// heuristic, not a schema validation: the four known layouts need different
// traversal paths and the choice must be made up front.
package sniff

import (
	"bytes"
)

// PrefixSize is how many leading bytes Detect is designed to inspect.
const PrefixSize = 4096

// Format is a detected schema variant.
type Format int

const (
	Unrecognized Format = iota
	// RootArray is a top-level array of visit/activity records.
	RootArray
	// LocationsWrapped is {"locations": [...]} with E7 coordinates.
	LocationsWrapped
	// SemanticSegments is {"semanticSegments": [...]}.
	SemanticSegments
	// TimelineObjects is {"timelineObjects": [...]}.
	TimelineObjects
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// keyed lists the wrapper formats in detection priority order.
var keyed = []struct {
	needle []byte
	format Format
}{
	{[]byte(`"locations"`), LocationsWrapped},
	{[]byte(`"semanticSegments"`), SemanticSegments},
	{[]byte(`"timelineObjects"`), TimelineObjects},
}

// Detect classifies prefix, normally the first PrefixSize bytes of the input.
func Detect(prefix []byte) Format {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(prefix), utf8BOM))
	if len(trimmed) == 0 {
		return Unrecognized
	}
	switch trimmed[0] {
	case '[':
		return RootArray
	case '{':
		for _, k := range keyed {
			if bytes.Contains(trimmed, k.needle) {
				return k.format
			}
		}
	}
	return Unrecognized
}

// String returns the name used in diagnostics and stored runs.
func (f Format) String() string {
	switch f {
	case RootArray:
		return "root_array"
	case LocationsWrapped:
		return "locations"
	case SemanticSegments:
		return "semanticSegments"
	case TimelineObjects:
		return "timelineObjects"
	default:
		return "unrecognized"
	}
}

// Key is the top-level object key whose array holds the elements, or "" when
// the root itself is the array.
func (f Format) Key() string {
	switch f {
	case LocationsWrapped:
		return "locations"
	case SemanticSegments:
		return "semanticSegments"
	case TimelineObjects:
		return "timelineObjects"
	default:
		return ""
	}
}

// BOMEnd returns the offset just past a UTF-8 byte order mark that follows
// any leading whitespace in b, or 0 when there is none. Discarding that many
// bytes leaves a stream Detect and a JSON decoder agree on.
func BOMEnd(b []byte) int {
	rest := bytes.TrimLeft(b, " \t\r\n")
	if !bytes.HasPrefix(rest, utf8BOM) {
		return 0
	}
	return len(b) - len(rest) + len(utf8BOM)
}
