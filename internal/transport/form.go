package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Form is a multipart/form-data payload. Fields keep insertion order.
type Form struct {
	fields []field
	files  []file
}

type field struct{ name, value string }

type file struct {
	field, name, ctype string
	data               []byte
}

// Add appends a text field.
func (f *Form) Add(name, value string) *Form {
	f.fields = append(f.fields, field{name: name, value: value})
	return f
}

// AddFile appends a binary part. An empty contentType means application/octet-stream.
func (f *Form) AddFile(fieldName, fileName, contentType string, data []byte) *Form {
	f.files = append(f.files, file{field: fieldName, name: fileName, ctype: contentType, data: data})
	return f
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, fl := range f.fields {
		if err := w.WriteField(fl.name, fl.value); err != nil {
			return nil, "", err
		}
	}
	for _, fl := range f.files {
		ctype := fl.ctype
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(fl.field), quoteEscaper.Replace(fl.name)))
		h.Set("Content-Type", ctype)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(fl.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Value returns the first text field named name.
func (f *Form) Value(name string) (string, bool) {
	for _, fl := range f.fields {
		if fl.name == name {
			return fl.value, true
		}
	}
	return "", false
}

// File returns the file name and bytes of the first binary part under fieldName.
func (f *Form) File(fieldName string) (string, []byte, bool) {
	for _, fl := range f.files {
		if fl.field == fieldName {
			return fl.name, fl.data, true
		}
	}
	return "", nil, false
}
