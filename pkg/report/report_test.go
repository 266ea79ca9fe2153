package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/menta2k/image-quality/pkg/batch"
	"github.com/menta2k/image-quality/pkg/types"
)

func completed(name string, score int, tier types.Tier, reasons ...string) batch.ImageFile {
	if reasons == nil {
		reasons = []string{}
	}
	return batch.ImageFile{
		Name:   name,
		Path:   "/photos/" + name,
		Status: batch.StatusCompleted,
		Result: &types.Assessment{
			Method:  types.MethodLocal,
			Verdict: types.Verdict{Score: score, IsGood: score > 60, Reasons: reasons},
			Quality: tier,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	items := []batch.ImageFile{
		completed("a.jpg", 82, types.TierGood, "Good overall quality"),
		{Name: "pending.jpg", Status: batch.StatusPending},
		{Name: "broken.jpg", Status: batch.StatusError, Error: "decode"},
		completed("b, c.png", 41, types.TierBad, "Image is too dark", `Low "contrast"`),
		completed("d.png", 65, types.TierStandard),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, items); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "Filename,Score,Quality,Reasons\n" +
		"a.jpg,82,Good,\"Good overall quality\"\n" +
		"\"b, c.png\",41,Bad,\"Image is too dark; Low \"\"contrast\"\"\"\n" +
		"d.png,65,Standard,\"\"\n"
	if buf.String() != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != CSVHeader {
		t.Errorf("Expected header only, got %q", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	items := []batch.ImageFile{
		completed("a.jpg", 82, types.TierGood, "Good overall quality"),
		{Name: "broken.jpg", Status: batch.StatusError, Error: "decode"},
		{Name: "pending.jpg", Status: batch.StatusPending},
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, items); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	if len(doc.Results) != 1 || doc.Results[0].Assessment.Score != 82 {
		t.Errorf("Unexpected results %+v", doc.Results)
	}
	if len(doc.Failed) != 1 || doc.Failed[0].Error != "decode" {
		t.Errorf("Unexpected failures %+v", doc.Failed)
	}
	if doc.Summary.Total != 3 || doc.Summary.Pending != 1 {
		t.Errorf("Unexpected summary %+v", doc.Summary)
	}
}
