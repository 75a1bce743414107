package message

import "strings"

// PartMetadata is the PartInfo view of one payload part, keyed by its
// normalized Content-ID
type PartMetadata struct {
	Href            string
	ContentID       string
	MimeType        string
	CompressionType string
	CharacterSet    string
	Properties      map[string]string
}

// NormalizeContentID strips the cid: scheme and angle brackets so IDs
// from MIME headers and PartInfo hrefs compare equal
func NormalizeContentID(contentID string) string {
	contentID = strings.TrimPrefix(contentID, "cid:")
	contentID = strings.TrimPrefix(contentID, "<")
	return strings.TrimSuffix(contentID, ">")
}

// PartMetadataByID extracts the metadata for every referenced part,
// keyed by normalized Content-ID
func PartMetadataByID(msg *UserMessage) map[string]*PartMetadata {
	out := make(map[string]*PartMetadata)
	if msg == nil || msg.PayloadInfo == nil {
		return out
	}
	for _, pi := range msg.PayloadInfo.PartInfo {
		meta := &PartMetadata{
			Href:       pi.Href,
			ContentID:  NormalizeContentID(pi.Href),
			Properties: make(map[string]string),
		}
		if pi.PartProperties != nil {
			for _, p := range pi.PartProperties.Property {
				meta.Properties[p.Name] = p.Value
				switch p.Name {
				case "MimeType":
					meta.MimeType = p.Value
				case "CompressionType":
					meta.CompressionType = p.Value
				case "CharacterSet":
					meta.CharacterSet = p.Value
				}
			}
		}
		out[meta.ContentID] = meta
	}
	return out
}

// AddProperty appends a part property
func (p *PartInfo) AddProperty(name, value string) {
	if p.PartProperties == nil {
		p.PartProperties = &PartProperties{}
	}
	p.PartProperties.Property = append(p.PartProperties.Property, Property{Name: name, Value: value})
}

// Property returns the named part property, or ""
func (p *PartInfo) Property(name string) string {
	if p.PartProperties == nil {
		return ""
	}
	for _, prop := range p.PartProperties.Property {
		if prop.Name == name {
			return prop.Value
		}
	}
	return ""
}
