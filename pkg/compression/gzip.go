package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/sirosfoundation/as4core/pkg/message"
)

const (
	// CompressionTypeGzip is the value of the CompressionType part
	// property for GZIP-compressed parts
	CompressionTypeGzip = "application/gzip"

	propCompressionType = "CompressionType"
	propMimeType        = "MimeType"
)

// Compressor handles payload part compression
type Compressor struct {
	compressionLevel int
}

// NewCompressor creates a compressor with the default compression level
func NewCompressor() *Compressor {
	return &Compressor{compressionLevel: gzip.DefaultCompression}
}

// NewCompressorWithLevel creates a compressor with the given level
func NewCompressorWithLevel(level int) *Compressor {
	return &Compressor{compressionLevel: level}
}

// Compress compresses data using GZIP
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, c.compressionLevel)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("writing data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses GZIP data
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("reading compressed data: %w", err)
	}
	return buf.Bytes(), nil
}

// CompressParts compresses every part whose content type is worth
// compressing. Each compressed part is rewritten to application/gzip
// and its PartInfo in msg gains a CompressionType property; the
// original type stays recorded in the MimeType property. Parts that
// are skipped pass through unchanged.
func (c *Compressor) CompressParts(msg *message.UserMessage, parts []message.Part) ([]message.Part, error) {
	if msg == nil || msg.PayloadInfo == nil {
		return parts, nil
	}

	infoByID := make(map[string]*message.PartInfo)
	for i := range msg.PayloadInfo.PartInfo {
		pi := &msg.PayloadInfo.PartInfo[i]
		infoByID[message.NormalizeContentID(pi.Href)] = pi
	}

	out := make([]message.Part, len(parts))
	for i, part := range parts {
		contentID := message.NormalizeContentID(part.ContentID)
		info, ok := infoByID[contentID]
		if !ok || !ShouldCompress(part.ContentType) {
			out[i] = part
			continue
		}

		compressed, err := c.Compress(part.Data)
		if err != nil {
			return nil, fmt.Errorf("compressing part %s: %w", contentID, err)
		}

		if info.Property(propMimeType) == "" {
			info.AddProperty(propMimeType, part.ContentType)
		}
		info.AddProperty(propCompressionType, CompressionTypeGzip)

		out[i] = message.Part{
			ContentID:        contentID,
			ContentType:      CompressionTypeGzip,
			TransferEncoding: part.TransferEncoding,
			Data:             compressed,
		}
	}
	return out, nil
}

// DecompressParts restores every part whose PartInfo carries a
// CompressionType property. The original content type comes from the
// MimeType property. A part that fails to decompress aborts the call.
func (c *Compressor) DecompressParts(msg *message.UserMessage, parts []message.Part) ([]message.Part, error) {
	meta := message.PartMetadataByID(msg)

	out := make([]message.Part, len(parts))
	for i, part := range parts {
		contentID := message.NormalizeContentID(part.ContentID)
		m, ok := meta[contentID]
		if !ok || m.CompressionType == "" {
			out[i] = part
			continue
		}
		if m.CompressionType != CompressionTypeGzip {
			return nil, fmt.Errorf("part %s: unsupported compression type %q", contentID, m.CompressionType)
		}

		plain, err := c.Decompress(part.Data)
		if err != nil {
			return nil, fmt.Errorf("decompressing part %s: %w", contentID, err)
		}

		contentType := m.MimeType
		if contentType == "" {
			contentType = part.ContentType
		}
		out[i] = message.Part{
			ContentID:        contentID,
			ContentType:      contentType,
			TransferEncoding: part.TransferEncoding,
			Data:             plain,
		}
	}
	return out, nil
}

// ShouldCompress reports whether a content type is worth compressing.
// Formats that are already compressed are skipped.
func ShouldCompress(contentType string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	switch strings.ToLower(contentType) {
	case "application/gzip", "application/x-gzip", "application/zip",
		"image/jpeg", "image/png", "video/mp4", "audio/mp3":
		return false
	}
	return true
}
