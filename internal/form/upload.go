package form

import (
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// File is an uploaded file body. multipart.File satisfies it.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// Upload describes a file that passed its checks.
type Upload struct {
	ContentType string
	Ext         string
	Size        int64
	Pages       int // PDFs only
}

// InvalidFile is a user-facing reason an upload was rejected.
type InvalidFile string

func (e InvalidFile) Error() string { return string(e) }

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// CheckImage sniffs f and accepts jpeg, png, gif and webp. The declared
// Content-Type from the client is ignored. f is rewound before returning.
func CheckImage(f File, size int64) (*Upload, error) {
	if size <= 0 {
		return nil, InvalidFile("The submitted file is empty.")
	}

	mt, err := sniff(f)
	if err != nil {
		return nil, err
	}
	if !mimetype.EqualsAny(mt.String(), imageTypes...) {
		return nil, InvalidFile("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	return &Upload{ContentType: mt.String(), Ext: mt.Extension(), Size: size}, nil
}

// CheckPDF accepts a non-empty PDF no larger than maxBytes that the pdf
// reader can open, and reports its page count. f is rewound before returning.
func CheckPDF(f File, size, maxBytes int64) (*Upload, error) {
	if size <= 0 {
		return nil, InvalidFile("The submitted file is empty.")
	}
	if maxBytes > 0 && size > maxBytes {
		return nil, InvalidFile(fmt.Sprintf("File too large. Maximum size is %d bytes.", maxBytes))
	}

	mt, err := sniff(f)
	if err != nil {
		return nil, err
	}
	if !mt.Is("application/pdf") {
		return nil, InvalidFile(fmt.Sprintf("Only PDF files are allowed (got %s).", mt.String()))
	}

	pages, err := countPages(f, size)
	if err != nil {
		return nil, InvalidFile("The PDF could not be read.")
	}
	if pages < 1 {
		return nil, InvalidFile("The PDF has no pages.")
	}

	return &Upload{ContentType: "application/pdf", Ext: ".pdf", Size: size, Pages: pages}, nil
}

func sniff(f File) (*mimetype.MIME, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, InvalidFile("The uploaded file could not be read.")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, InvalidFile("The uploaded file could not be read.")
	}
	return mt, nil
}

// countPages opens the document through its cross-reference table. The
// parser panics on some malformed inputs, so a panic is reported as an error.
func countPages(r io.ReaderAt, size int64) (pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("form: malformed pdf: %v", rec)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("form: opening pdf: %w", err)
	}
	return doc.NumPage(), nil
}
