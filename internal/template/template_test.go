package template

import (
	"testing"
)

const sampleJSON = `{
  "pageDimensions": [666, 820],
  "bubbleDimensions": [20, 20],
  "fieldBlocks": {
    "MCQBlock1": {
      "origin": [100, 200],
      "bubblesGap": 30,
      "labelsGap": 40,
      "direction": "horizontal",
      "fieldType": "QTYPE_MCQ4",
      "fieldLabels": ["q1..q3"]
    },
    "RollBlock": {
      "origin": [400, 100],
      "bubblesGap": 25,
      "labelsGap": 35,
      "direction": "vertical",
      "fieldType": "QTYPE_INT",
      "fieldLabels": ["roll1", "roll2"]
    },
    "IDBlock": {
      "origin": [550, 60],
      "bubblesGap": 20,
      "labelsGap": 20,
      "fieldType": "QTYPE_CUSTOM",
      "fieldLabels": ["qr_id"]
    }
  },
  "preProcessors": [
    {"name": "CropOnMarkers", "options": {"relativePath": "omr_marker.jpg", "min_matching_threshold": 0.3}}
  ]
}`

func TestParseSample(t *testing.T) {
	tpl, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(tpl.FieldBlocks) != 3 {
		t.Fatalf("blocks: got %d, want 3", len(tpl.FieldBlocks))
	}

	// Blocks come back sorted by name.
	if tpl.FieldBlocks[0].Name != "IDBlock" || tpl.FieldBlocks[1].Name != "MCQBlock1" {
		t.Errorf("block order: got %s, %s", tpl.FieldBlocks[0].Name, tpl.FieldBlocks[1].Name)
	}

	mcq := tpl.FieldBlocks[1]
	if got := len(mcq.FieldLabels); got != 3 {
		t.Errorf("label range expansion: got %d labels, want 3", got)
	}
	if mcq.FieldLabels[2] != "q3" {
		t.Errorf("last label: got %s, want q3", mcq.FieldLabels[2])
	}
	if got := len(mcq.BubbleValues); got != 4 {
		t.Errorf("MCQ4 values: got %d, want 4", got)
	}
	if len(mcq.Strips) != 3 || len(mcq.Strips[0]) != 4 {
		t.Fatalf("strip grid: got %dx%d, want 3x4", len(mcq.Strips), len(mcq.Strips[0]))
	}

	// Horizontal block: bubbles advance in x, labels in y.
	b := mcq.Strips[1][2]
	if b.X != 100+2*30 || b.Y != 200+1*40 {
		t.Errorf("bubble position: got (%f,%f), want (160,240)", b.X, b.Y)
	}
	if b.FieldLabel != "q2" || b.FieldValue != "C" {
		t.Errorf("bubble identity: got (%s,%s), want (q2,C)", b.FieldLabel, b.FieldValue)
	}

	// Vertical block: bubbles advance in y.
	roll := tpl.FieldBlocks[2]
	rb := roll.Strips[0][3]
	if rb.X != 400 || rb.Y != 100+3*25 {
		t.Errorf("vertical bubble position: got (%f,%f), want (400,175)", rb.X, rb.Y)
	}
	if !roll.IsRoll() {
		t.Error("RollBlock not detected as roll/identity block")
	}

	qr := tpl.FieldBlocks[0]
	if !qr.IsQR() {
		t.Error("QTYPE_CUSTOM block not detected as QR")
	}
}

func TestParseRejectsDuplicateLabels(t *testing.T) {
	const dup = `{
	  "pageDimensions": [100, 100],
	  "bubbleDimensions": [10, 10],
	  "fieldBlocks": {
	    "A": {"origin": [0,0], "bubblesGap": 10, "labelsGap": 10, "fieldType": "QTYPE_MCQ4", "fieldLabels": ["q1"]},
	    "B": {"origin": [50,0], "bubblesGap": 10, "labelsGap": 10, "fieldType": "QTYPE_MCQ4", "fieldLabels": ["q1"]}
	  }
	}`
	if _, err := Parse([]byte(dup)); err == nil {
		t.Error("expected error for duplicate field label")
	}
}

func TestLegacyQRBlock(t *testing.T) {
	b := &FieldBlock{Name: LegacyQRBlockName, BubbleValues: []string{"QR_Code"}}
	if !b.IsQR() {
		t.Error("legacy QR block not detected")
	}
	b2 := &FieldBlock{Name: "MCQBlock", BubbleValues: []string{"A", "B"}}
	if b2.IsQR() {
		t.Error("plain block misdetected as QR")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tpl, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	clone := tpl.Clone()
	clone.FieldBlocks[1].Shift = 7
	clone.FieldBlocks[1].Strips[0][0].X = -1
	clone.FieldBlocks[1].Origin[0] = -5

	orig := tpl.FieldBlocks[1]
	if orig.Shift != 0 {
		t.Errorf("Shift leaked into original: %f", orig.Shift)
	}
	if orig.Strips[0][0].X == -1 {
		t.Error("bubble mutation leaked into original")
	}
	if orig.Origin[0] == -5 {
		t.Error("origin mutation leaked into original")
	}
}

func TestExpandLabelRange(t *testing.T) {
	got, err := expandLabelRange("q8..q11")
	if err != nil {
		t.Fatalf("expandLabelRange failed: %v", err)
	}
	want := []string{"q8", "q9", "q10", "q11"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if _, err := expandLabelRange("q5..p9"); err == nil {
		t.Error("expected error for mismatched prefixes")
	}
}
