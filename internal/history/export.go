package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON streams points to w as a JSON array, one element per line, in the
// order given. An empty or nil slice is written as [].
func WriteJSON(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("["); err != nil {
		return err
	}
	for i := range points {
		sep := ",\n"
		if i == 0 {
			sep = "\n"
		}
		if _, err := bw.WriteString(sep); err != nil {
			return err
		}
		b, err := json.Marshal(points[i])
		if err != nil {
			return fmt.Errorf("failed to encode point %d: %w", i, err)
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	if len(points) > 0 {
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("]\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadJSON decodes a sequence written by WriteJSON.
func ReadJSON(r io.Reader) ([]Point, error) {
	var points []Point
	if err := json.NewDecoder(r).Decode(&points); err != nil {
		return nil, fmt.Errorf("failed to decode points: %w", err)
	}
	return points, nil
}
