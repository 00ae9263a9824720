package consent

import (
	"bytes"
	"embed"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Type identifies which document a signature accepts.
type Type string

const (
	TypeTerms  Type = "terminos"
	TypeWaiver Type = "deslinde"
)

// DocumentVersion is stamped on every signature so a later edit of the
// documents does not rewrite what a client agreed to.
const DocumentVersion = "2025-01"

// MaxSignatureBytes bounds a decoded signature image.
const MaxSignatureBytes = 512 << 10

const pngDataURLPrefix = "data:image/png;base64,"

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

//go:embed documents/*.md
var documentFS embed.FS

// Domain errors
var (
	ErrSignatureMissing  = errors.New("falta la firma")
	ErrSignatureFormat   = errors.New("la firma debe ser una imagen PNG")
	ErrSignatureTooLarge = errors.New("la firma es demasiado grande")
	ErrUnknownDocument   = errors.New("unknown consent document")
)

// Document is a consent text shown before signing.
type Document struct {
	Type     Type
	Title    string
	Version  string
	Markdown string
}

// Signature is a captured raster signature accepting one document.
type Signature struct {
	ID        string
	ProfileID string
	Type      Type
	Version   string
	Image     []byte // PNG
	IPAddress string
	UserAgent string
	SignedAt  time.Time
}

// Documents returns the two documents every client signs, terms first.
func Documents() ([]Document, error) {
	var docs []Document
	for _, t := range []Type{TypeTerms, TypeWaiver} {
		d, err := LoadDocument(t)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// LoadDocument reads the embedded markdown for t.
func LoadDocument(t Type) (Document, error) {
	var title string
	switch t {
	case TypeTerms:
		title = "Términos y condiciones"
	case TypeWaiver:
		title = "Deslinde de responsabilidad médica"
	default:
		return Document{}, ErrUnknownDocument
	}
	body, err := documentFS.ReadFile("documents/" + string(t) + ".md")
	if err != nil {
		return Document{}, err
	}
	return Document{Type: t, Title: title, Version: DocumentVersion, Markdown: string(body)}, nil
}

// DecodeSignature turns a canvas data URL into PNG bytes.
func DecodeSignature(dataURL string) ([]byte, error) {
	if strings.TrimSpace(dataURL) == "" {
		return nil, ErrSignatureMissing
	}
	if !strings.HasPrefix(dataURL, pngDataURLPrefix) {
		return nil, ErrSignatureFormat
	}
	encoded := dataURL[len(pngDataURLPrefix):]
	if base64.StdEncoding.DecodedLen(len(encoded)) > MaxSignatureBytes {
		return nil, ErrSignatureTooLarge
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !bytes.HasPrefix(img, pngMagic) {
		return nil, ErrSignatureFormat
	}
	return img, nil
}

// Validate checks if the Signature has valid data.
// PRE: Signature struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (s *Signature) Validate() error {
	if s.ProfileID == "" {
		return errors.New("signature must be associated with a profile")
	}
	if s.Type != TypeTerms && s.Type != TypeWaiver {
		return ErrUnknownDocument
	}
	if !bytes.HasPrefix(s.Image, pngMagic) {
		return ErrSignatureFormat
	}
	if s.SignedAt.IsZero() {
		return errors.New("signed date must be set")
	}
	return nil
}
