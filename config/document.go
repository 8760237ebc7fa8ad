package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// FormatVersion is written on the root element of every saved document.
const FormatVersion = "2"

const dateLayout = time.RFC3339

// Document is the persisted form of a File: one section per part, each
// holding the locally set key/value pairs of that part.
type Document struct {
	Version  string
	Date     time.Time
	Sections []Section
}

// Section is one part of a Document.
type Section struct {
	Part    Parts
	Entries []Entry
}

// Entry is one locally set key.
type Entry struct {
	Key   string
	Value string
}

// Section returns the section for a single part.
func (d Document) Section(part Parts) (Section, bool) {
	for _, section := range d.Sections {
		if section.Part == part {
			return section, true
		}
	}
	return Section{}, false
}

// Filter keeps only the sections selected by parts.
func (d Document) Filter(parts Parts) Document {
	out := Document{Version: d.Version, Date: d.Date}
	for _, section := range d.Sections {
		if parts.Has(section.Part) {
			out.Sections = append(out.Sections, section)
		}
	}
	return out
}

// Len counts entries across every section.
func (d Document) Len() int {
	total := 0
	for _, section := range d.Sections {
		total += len(section.Entries)
	}
	return total
}

type xmlDocument struct {
	XMLName  xml.Name     `xml:"config"`
	Version  string       `xml:"version,attr"`
	Date     string       `xml:"date,attr"`
	Sections []xmlSection `xml:",any"`
}

type xmlSection struct {
	XMLName xml.Name
	Items   []xmlItem `xml:"item"`
}

type xmlItem struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

// Encode writes d as XML. Sections are written in document order and
// entries sorted by key so saves are stable.
func (d Document) Encode(w io.Writer) error {
	payload := xmlDocument{
		Version: d.Version,
		Date:    d.Date.UTC().Format(dateLayout),
	}
	if payload.Version == "" {
		payload.Version = FormatVersion
	}
	sections := append([]Section(nil), d.Sections...)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Part < sections[j].Part
	})
	for _, section := range sections {
		name := section.Part.Name()
		if name == "" {
			return fmt.Errorf("%w: section must select exactly one part, got %s", ErrInvalidDocument, section.Part)
		}
		entries := append([]Entry(nil), section.Entries...)
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Key < entries[j].Key
		})
		out := xmlSection{XMLName: xml.Name{Local: name}}
		for _, entry := range entries {
			out.Items = append(out.Items, xmlItem(entry))
		}
		payload.Sections = append(payload.Sections, out)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode reads a Document. Unknown section elements are skipped; items with
// a blank key or value are rejected.
func Decode(r io.Reader) (Document, error) {
	var payload xmlDocument
	if err := xml.NewDecoder(r).Decode(&payload); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc := Document{Version: payload.Version}
	if payload.Date != "" {
		date, err := time.Parse(dateLayout, payload.Date)
		if err != nil {
			return Document{}, fmt.Errorf("%w: date %q: %v", ErrInvalidDocument, payload.Date, err)
		}
		doc.Date = date
	}
	for _, raw := range payload.Sections {
		part, ok := PartFromName(raw.XMLName.Local)
		if !ok {
			continue
		}
		section := Section{Part: part}
		for _, item := range raw.Items {
			if strings.TrimSpace(item.Key) == "" || strings.TrimSpace(item.Value) == "" {
				return Document{}, fmt.Errorf("%w: section %s has an item with a blank key or value", ErrInvalidDocument, part.Name())
			}
			section.Entries = append(section.Entries, Entry(item))
		}
		doc.Sections = append(doc.Sections, section)
	}
	return doc, nil
}
