package output

import (
	"fmt"
	"io"
	"strings"
)

// Fields renders labeled values as an aligned block of text:
//
//	Status:   connected
//	Address:  0x5aAe...
type Fields struct {
	labels []string
	values []string
}

// NewFields creates an empty block.
func NewFields() *Fields {
	return &Fields{}
}

// Add appends a labeled value. Empty values are rendered as "-".
func (f *Fields) Add(label, value string) *Fields {
	if value == "" {
		value = "-"
	}
	f.labels = append(f.labels, label)
	f.values = append(f.values, value)
	return f
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	return len(f.labels)
}

// Render writes the block to w.
func (f *Fields) Render(w io.Writer) error {
	width := 0
	for _, l := range f.labels {
		width = max(width, len(l)+1)
	}

	for i, l := range f.labels {
		if _, err := fmt.Fprintf(w, "%-*s  %s\n", width, l+":", f.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// String returns the rendered block.
func (f *Fields) String() string {
	var sb strings.Builder
	_ = f.Render(&sb)
	return sb.String()
}
