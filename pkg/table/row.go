package table

import (
	"strings"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// Delimiter is the pipe-delimited column separator mandated by spec.md §6.
// There is no escape mechanism: values containing it (or a newline) are
// rejected at write time.
const Delimiter = "|"

// Row is one pipe-delimited record: Key is the first column (the primary
// key by convention) and Values holds every column, including the key, in
// file order.
type Row struct {
	Key    string
	Values []string
}

// Image is a parsed CSV byte image: a header and its rows, in file order.
type Image struct {
	Header []string
	Rows   []Row
}

// ParseImage parses pipe-delimited bytes into an Image. The first line is
// the header.
func ParseImage(data []byte) (*Image, error) {
	text := string(data)
	lines := strings.Split(text, "\n")
	// trim a single trailing blank line left by a terminating \n
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return &Image{}, nil
	}
	header := strings.Split(lines[0], Delimiter)
	img := &Image{Header: header}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		cols := strings.Split(line, Delimiter)
		if len(cols) != len(header) {
			return nil, rerrors.Validationf("row has %d columns, header has %d", len(cols), len(header))
		}
		img.Rows = append(img.Rows, Row{Key: cols[0], Values: cols})
	}
	return img, nil
}

// Bytes serializes the Image back to pipe-delimited bytes.
func (img *Image) Bytes() []byte {
	var sb strings.Builder
	sb.WriteString(strings.Join(img.Header, Delimiter))
	sb.WriteByte('\n')
	for _, row := range img.Rows {
		sb.WriteString(strings.Join(row.Values, Delimiter))
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// ByKey indexes the image's rows by primary key for merge and lookup use.
func (img *Image) ByKey() map[string]Row {
	m := make(map[string]Row, len(img.Rows))
	for _, r := range img.Rows {
		m[r.Key] = r
	}
	return m
}

// ValidateValues rejects column values containing the delimiter or a
// newline, since the format has no escape mechanism (spec.md §6).
func ValidateValues(values []string) error {
	for _, v := range values {
		if strings.Contains(v, Delimiter) {
			return rerrors.Validationf("value %q contains the forbidden delimiter", v)
		}
		if strings.ContainsAny(v, "\n\r") {
			return rerrors.Validationf("value %q contains a forbidden newline", v)
		}
	}
	return nil
}
