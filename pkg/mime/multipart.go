package mime

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"

	"github.com/sirosfoundation/as4core/pkg/message"
)

const (
	// ContentTypeSOAP is the media type of the root part
	ContentTypeSOAP = "application/soap+xml"

	// TransferEncodingBinary is used for ciphertext parts
	TransferEncodingBinary = "binary"

	// TransferEncoding8Bit is the default for plaintext parts
	TransferEncoding8Bit = "8bit"
)

// Package is a multipart/related message: the SOAP envelope plus zero or
// more cid-addressable attachment parts
type Package struct {
	Boundary string
	StartID  string
	Envelope []byte
	Parts    []message.Part
}

// NewPackage wraps an envelope, generating a boundary and start ID
func NewPackage(envelope []byte) *Package {
	return &Package{
		Boundary: generateBoundary(),
		StartID:  uuid.New().String() + "@as4core",
		Envelope: envelope,
	}
}

// AddPart appends an attachment part. Parts without a transfer encoding
// default to 8bit.
func (p *Package) AddPart(part message.Part) {
	if part.TransferEncoding == "" {
		part.TransferEncoding = TransferEncoding8Bit
	}
	p.Parts = append(p.Parts, part)
}

// ContentType returns the top-level Content-Type header value
func (p *Package) ContentType() string {
	return mime.FormatMediaType("multipart/related", map[string]string{
		"boundary": p.Boundary,
		"type":     ContentTypeSOAP,
		"start":    "<" + p.StartID + ">",
	})
}

// Pack serializes the package to wire format
func (p *Package) Pack() ([]byte, error) {
	if len(p.Envelope) == 0 {
		return nil, fmt.Errorf("package has no envelope")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(p.Boundary); err != nil {
		return nil, fmt.Errorf("setting boundary: %w", err)
	}

	rootHdr := textproto.MIMEHeader{}
	rootHdr.Set("Content-Type", ContentTypeSOAP+"; charset=utf-8")
	rootHdr.Set("Content-ID", "<"+p.StartID+">")
	root, err := w.CreatePart(rootHdr)
	if err != nil {
		return nil, fmt.Errorf("creating root part: %w", err)
	}
	if _, err := root.Write(p.Envelope); err != nil {
		return nil, fmt.Errorf("writing envelope: %w", err)
	}

	for _, part := range p.Parts {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", part.ContentType)
		hdr.Set("Content-ID", "<"+message.NormalizeContentID(part.ContentID)+">")
		if part.TransferEncoding != "" {
			hdr.Set("Content-Transfer-Encoding", part.TransferEncoding)
		}
		pw, err := w.CreatePart(hdr)
		if err != nil {
			return nil, fmt.Errorf("creating part %s: %w", part.ContentID, err)
		}
		if _, err := pw.Write(part.Data); err != nil {
			return nil, fmt.Errorf("writing part %s: %w", part.ContentID, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack parses a multipart/related body. The envelope part is located
// by the start parameter when present, otherwise the first part is
// taken as the envelope.
func Unpack(body []byte, contentType string) (*Package, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parsing content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("not a multipart message: %s", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("missing boundary parameter")
	}

	pkg := &Package{
		Boundary: boundary,
		StartID:  message.NormalizeContentID(params["start"]),
	}

	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	first := true
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading part: %w", err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("reading part body: %w", err)
		}
		contentID := message.NormalizeContentID(part.Header.Get("Content-ID"))

		isRoot := false
		if pkg.StartID != "" {
			isRoot = contentID == pkg.StartID
		} else {
			isRoot = first
		}
		first = false

		if isRoot && pkg.Envelope == nil {
			pkg.Envelope = data
			if pkg.StartID == "" {
				pkg.StartID = contentID
			}
			continue
		}

		pkg.Parts = append(pkg.Parts, message.Part{
			ContentID:        contentID,
			ContentType:      part.Header.Get("Content-Type"),
			TransferEncoding: part.Header.Get("Content-Transfer-Encoding"),
			Data:             data,
		})
	}

	if pkg.Envelope == nil {
		return nil, fmt.Errorf("no envelope part found")
	}
	return pkg, nil
}

// PartByContentID returns the attachment with the given Content-ID, or nil
func (p *Package) PartByContentID(contentID string) *message.Part {
	want := message.NormalizeContentID(contentID)
	for i := range p.Parts {
		if message.NormalizeContentID(p.Parts[i].ContentID) == want {
			return &p.Parts[i]
		}
	}
	return nil
}

func generateBoundary() string {
	return "----=_Part_" + uuid.New().String()
}
