package jmdictgen

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/meikido/kotoba/internal/formats/jmdict"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE JMdict [
<!ENTITY n "noun (common) (futsuumeishi)">
<!ENTITY v5r "Godan verb with 'ru' ending">
]>
<JMdict>
<entry>
<ent_seq>1467640</ent_seq>
<k_ele><keb>猫</keb></k_ele>
<r_ele><reb>ねこ</reb></r_ele>
<sense><pos>&n;</pos><gloss>cat</gloss></sense>
<sense><gloss>shamisen</gloss></sense>
</entry>
<entry>
<ent_seq>1234567</ent_seq>
<r_ele><reb>がる</reb></r_ele>
<sense><pos>&v5r;</pos><gloss>to feel</gloss></sense>
</entry>
<entry>
<ent_seq>9999999</ent_seq>
<k_ele><keb>空</keb></k_ele>
</entry>
</JMdict>`

// TestGenerate verifies XML conversion: entity-style part-of-speech
// tags survive as literal text, kanji-less entries keep their
// readings, and entries without senses are skipped.
func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "JMdict.xml")
	if err := os.WriteFile(src, []byte(sampleXML), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "chunks")
	n, err := Generate(src, out, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Generate wrote %d entries, want 2", n)
	}

	data, err := os.ReadFile(filepath.Join(out, "jmdict_0001.json"))
	if err != nil {
		t.Fatal(err)
	}
	var records []struct {
		Seq   int64 `json:"seq"`
		KEle  []struct {
			Keb string `json:"keb"`
		} `json:"k_ele"`
		Sense []struct {
			Gloss []string `json:"gloss"`
			POS   []string `json:"pos"`
		} `json:"sense"`
	}
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("chunk holds %d records, want 2", len(records))
	}

	cat := records[0]
	if cat.Seq != 1467640 || cat.KEle[0].Keb != "猫" {
		t.Errorf("record 0 = %+v", cat)
	}
	if cat.Sense[0].POS[0] != "&n;" {
		t.Errorf("pos = %q, want literal entity text", cat.Sense[0].POS[0])
	}
	if records[1].Sense[0].POS[0] != "&v5r;" {
		t.Errorf("kana-only pos = %q", records[1].Sense[0].POS[0])
	}
}

// TestGenerate_AdapterRoundTrip verifies the emitted chunks load
// through the bundled-lexicon adapter with part-of-speech carry-forward
// intact.
func TestGenerate_AdapterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "JMdict.xml")
	if err := os.WriteFile(src, []byte(sampleXML), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "chunks")
	if _, err := Generate(src, out, Options{}); err != nil {
		t.Fatal(err)
	}

	result, err := jmdict.Parse([]string{filepath.Join(out, "jmdict_0001.json")})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("adapter loaded %d entries, want 2", len(result.Entries))
	}

	cat := result.Entries[0]
	if cat.WrittenForms[0] != "猫" || cat.Readings[0] != "ねこ" {
		t.Errorf("entry 0 = %+v", cat)
	}
	if cat.Senses[0].PartOfSpeech[0] != "n" {
		t.Errorf("pos = %v, want [n]", cat.Senses[0].PartOfSpeech)
	}
	if cat.Senses[1].PartOfSpeech[0] != "n" {
		t.Errorf("carried pos = %v, want [n]", cat.Senses[1].PartOfSpeech)
	}
}

// TestGenerate_Chunking verifies records split across files at the
// configured size.
func TestGenerate_Chunking(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "JMdict.xml")
	if err := os.WriteFile(src, []byte(sampleXML), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "chunks")
	if _, err := Generate(src, out, Options{ChunkSize: 1}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"jmdict_0001.json", "jmdict_0002.json"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing chunk %s: %v", name, err)
		}
	}
}
