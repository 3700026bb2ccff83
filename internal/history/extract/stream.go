package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/locationhistory/internal/history"
)

// walker pulls tokens from a json.Decoder and hands out the elements of one
// array: the root array when key is empty, otherwise every top-level member
// named key whose value is an array. Only one element is held in memory at a
// time; other members are skipped token by token.
type walker struct {
	dec   *json.Decoder
	key   string
	index int
}

func newWalker(r io.Reader, key string) *walker {
	return &walker{dec: json.NewDecoder(r), key: key}
}

func (w *walker) walk(fn func(index int, raw json.RawMessage) error) error {
	if w.key == "" {
		if err := w.expectDelim('['); err != nil {
			return err
		}
		return w.array(fn)
	}

	if err := w.expectDelim('{'); err != nil {
		return err
	}
	for w.dec.More() {
		tok, err := w.dec.Token()
		if err != nil {
			return classify(err)
		}
		name, ok := tok.(string)
		if !ok {
			return structuralf("expected object key, got %v", tok)
		}
		if name != w.key {
			if err := w.skipValue(); err != nil {
				return err
			}
			continue
		}
		if err := w.member(fn); err != nil {
			return err
		}
	}
	_, err := w.dec.Token() // closing '}'
	return classify(err)
}

// member handles the value of a matching key. Anything other than an array
// holds no elements and is skipped.
func (w *walker) member(fn func(int, json.RawMessage) error) error {
	tok, err := w.dec.Token()
	if err != nil {
		return classify(err)
	}
	switch tok {
	case json.Delim('['):
		return w.array(fn)
	case json.Delim('{'):
		return w.skipNested(1)
	default:
		return nil
	}
}

// array emits the elements of an array whose '[' has been consumed, then
// consumes the closing ']'.
func (w *walker) array(fn func(int, json.RawMessage) error) error {
	for w.dec.More() {
		var raw json.RawMessage
		if err := w.dec.Decode(&raw); err != nil {
			return classify(err)
		}
		i := w.index
		w.index++
		if err := fn(i, raw); err != nil {
			return err
		}
	}
	_, err := w.dec.Token()
	return classify(err)
}

func (w *walker) skipValue() error {
	tok, err := w.dec.Token()
	if err != nil {
		return classify(err)
	}
	if d, ok := tok.(json.Delim); ok && (d == '[' || d == '{') {
		return w.skipNested(1)
	}
	return nil
}

// skipNested consumes tokens until depth open delimiters have been closed.
func (w *walker) skipNested(depth int) error {
	for depth > 0 {
		tok, err := w.dec.Token()
		if err != nil {
			return classify(err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

func (w *walker) expectDelim(want json.Delim) error {
	tok, err := w.dec.Token()
	if err != nil {
		return classify(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return structuralf("expected %q at document root, got %v", want, tok)
	}
	return nil
}

// classify maps decoder errors onto the run taxonomy: token-stream problems
// are structural, anything else came from the underlying reader.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", history.ErrStructuralParse, err)
	}
	return fmt.Errorf("read input: %w", err)
}

func structuralf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{history.ErrStructuralParse}, args...)...)
}
