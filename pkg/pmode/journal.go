package pmode

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/beevik/etree"
)

// Journal persists the registry. Save receives the full set of live
// records plus the default ID; Load replays them at startup.
type Journal interface {
	Save(records []*Record, defaultID string) error
	Load() (records []*Record, defaultID string, err error)
}

const (
	journalRoot      = "PModes"
	attrDefaultID    = "defaultpmode"
	attrState        = "state"
	attrLastModified = "lastModified"
)

// XMLJournal stores the registry as one XML document on disk. The root
// element carries the default P-Mode ID in its defaultpmode attribute;
// each child element is one record tagged with its state and
// modification time. Writes go through a temp file and rename.
type XMLJournal struct {
	path string
}

// NewXMLJournal creates a journal at the given path. The parent
// directory must exist.
func NewXMLJournal(path string) (*XMLJournal, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checking journal directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("journal parent is not a directory: %s", dir)
	}
	return &XMLJournal{path: path}, nil
}

// Save writes the full registry document
func (j *XMLJournal) Save(records []*Record, defaultID string) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(journalRoot)
	if defaultID != "" {
		root.CreateAttr(attrDefaultID, defaultID)
	}

	for _, rec := range records {
		data, err := xml.Marshal(rec.PMode)
		if err != nil {
			return fmt.Errorf("marshaling pmode %s: %w", rec.PMode.ID, err)
		}
		entry := etree.NewDocument()
		if err := entry.ReadFromBytes(data); err != nil {
			return fmt.Errorf("rebuilding pmode %s: %w", rec.PMode.ID, err)
		}
		elem := entry.Root()
		elem.CreateAttr(attrState, string(rec.State))
		elem.CreateAttr(attrLastModified, rec.LastModified.UTC().Format(time.RFC3339Nano))
		root.AddChild(elem.Copy())
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serializing journal: %w", err)
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("replacing journal: %w", err)
	}
	return nil
}

// Load reads the registry document. A missing file yields an empty
// registry.
func (j *XMLJournal) Load() ([]*Record, string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(j.path); err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading journal: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, "", nil
	}
	if root.Tag != journalRoot {
		return nil, "", fmt.Errorf("unexpected journal root element %q", root.Tag)
	}

	defaultID := root.SelectAttrValue(attrDefaultID, "")

	var records []*Record
	for _, elem := range root.ChildElements() {
		entry := etree.NewDocument()
		entry.SetRoot(elem.Copy())
		data, err := entry.WriteToBytes()
		if err != nil {
			return nil, "", fmt.Errorf("extracting journal entry: %w", err)
		}

		var pm ProcessingMode
		if err := xml.Unmarshal(data, &pm); err != nil {
			return nil, "", fmt.Errorf("parsing journal entry: %w", err)
		}

		rec := &Record{PMode: &pm, State: StateActive}
		if st := elem.SelectAttrValue(attrState, ""); st != "" {
			rec.State = State(st)
		}
		if ts := elem.SelectAttrValue(attrLastModified, ""); ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, "", fmt.Errorf("parsing lastModified of %s: %w", pm.ID, err)
			}
			rec.LastModified = t
		}
		records = append(records, rec)
	}
	return records, defaultID, nil
}
