// Package jmdictgen converts the JMdict XML distribution into the
// bundled JSON chunk files the jmdict adapter consumes. It is build
// tooling, not part of the lookup path.
package jmdictgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/antchfx/xmlquery"
)

// DefaultChunkSize is how many entries one output chunk holds.
const DefaultChunkSize = 10000

// Options controls generation.
type Options struct {
	// ChunkSize overrides the entries-per-file split. Non-positive
	// means DefaultChunkSize.
	ChunkSize int
}

// record mirrors the JSON shape the jmdict adapter reads.
type record struct {
	Seq   int64          `json:"seq"`
	KEle  []formElement  `json:"k_ele,omitempty"`
	REle  []readElement  `json:"r_ele"`
	Sense []senseElement `json:"sense"`
}

type formElement struct {
	Keb string `json:"keb"`
}

type readElement struct {
	Reb string `json:"reb"`
}

type senseElement struct {
	Gloss []string `json:"gloss"`
	POS   []string `json:"pos,omitempty"`
}

// Generate parses the JMdict XML file at xmlPath and writes JSON chunk
// files named jmdict_NNNN.json into outDir. It returns the number of
// entries written.
func Generate(xmlPath, outDir string, opts Options) (int, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return 0, fmt.Errorf("jmdictgen: read %s: %w", xmlPath, err)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(prepareXML(data)))
	if err != nil {
		return 0, fmt.Errorf("jmdictgen: parse %s: %w", xmlPath, err)
	}

	var records []record
	for _, node := range xmlquery.Find(doc, "//entry") {
		if rec, ok := convertEntry(node); ok {
			records = append(records, rec)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("jmdictgen: create %s: %w", outDir, err)
	}

	for i := 0; i*chunkSize < len(records); i++ {
		end := (i + 1) * chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk, err := json.Marshal(records[i*chunkSize : end])
		if err != nil {
			return 0, fmt.Errorf("jmdictgen: encode chunk %d: %w", i+1, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("jmdict_%04d.json", i+1))
		if err := os.WriteFile(path, chunk, 0o644); err != nil {
			return 0, fmt.Errorf("jmdictgen: write %s: %w", path, err)
		}
	}

	return len(records), nil
}

var (
	doctypePattern = regexp.MustCompile(`(?s)<!DOCTYPE.*?\]>`)
	entityPattern  = regexp.MustCompile(`<!ENTITY\s+(\S+)\s+"`)
)

// prepareXML strips the DOCTYPE block and neutralizes the custom DTD
// entities it declares, so the document parses with Go's XML decoder.
// Each declared entity reference survives as its literal "&name;" text,
// which is the form the adapter expects part-of-speech tags in.
func prepareXML(data []byte) []byte {
	doctype := doctypePattern.Find(data)
	if doctype == nil {
		return data
	}

	for _, m := range entityPattern.FindAllSubmatch(doctype, -1) {
		name := string(m[1])
		data = bytes.ReplaceAll(data,
			[]byte("&"+name+";"),
			[]byte("&amp;"+name+";"))
	}
	return doctypePattern.ReplaceAll(data, nil)
}

// convertEntry maps one <entry> element to the bundled record shape.
// Entries without a sequence number or without any reading are skipped.
func convertEntry(node *xmlquery.Node) (record, bool) {
	seqText := childText(node, "ent_seq")
	seq, err := strconv.ParseInt(seqText, 10, 64)
	if err != nil {
		return record{}, false
	}
	rec := record{Seq: seq}

	for _, k := range xmlquery.Find(node, "k_ele") {
		if keb := childText(k, "keb"); keb != "" {
			rec.KEle = append(rec.KEle, formElement{Keb: keb})
		}
	}
	for _, r := range xmlquery.Find(node, "r_ele") {
		if reb := childText(r, "reb"); reb != "" {
			rec.REle = append(rec.REle, readElement{Reb: reb})
		}
	}
	if len(rec.REle) == 0 {
		return record{}, false
	}

	for _, s := range xmlquery.Find(node, "sense") {
		sense := senseElement{}
		for _, g := range xmlquery.Find(s, "gloss") {
			if text := g.InnerText(); text != "" {
				sense.Gloss = append(sense.Gloss, text)
			}
		}
		for _, p := range xmlquery.Find(s, "pos") {
			if text := p.InnerText(); text != "" {
				sense.POS = append(sense.POS, text)
			}
		}
		if len(sense.Gloss) > 0 {
			rec.Sense = append(rec.Sense, sense)
		}
	}
	if len(rec.Sense) == 0 {
		return record{}, false
	}

	return rec, true
}

func childText(node *xmlquery.Node, name string) string {
	if child := xmlquery.FindOne(node, name); child != nil {
		return child.InnerText()
	}
	return ""
}
