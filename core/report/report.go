package report

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Format is the output format of a rendered report.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

var ErrInvalidFormat = errors.New("format must be one of pdf, xlsx")

// ParseFormat parses `s`, defaulting to FormatPDF when empty.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", ErrInvalidFormat
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

func (f Format) Ext() string {
	return "." + string(f)
}

// Meta is a labelled value shown under the document title.
type Meta struct {
	Label string
	Value string
}

type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
	Summary [][]string // optional rows rendered after Rows, emphasized
}

// Document is a renderer-independent report.
type Document struct {
	Name        string // file name, without extension
	Title       string
	Subtitle    string
	Meta        []Meta
	Tables      []Table
	GeneratedAt time.Time
}

// FileName returns the attachment name of the document rendered in `format`.
func (doc *Document) FileName(format Format) string {
	return doc.Name + format.Ext()
}

// Renderer writes documents in the supported formats.
type Renderer interface {
	Render(w io.Writer, doc Document, format Format) error
}
