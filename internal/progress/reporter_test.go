package progress

import (
	"bytes"
	"testing"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Task: "Ingesting", Out: &buf}

	r.Start(2)
	r.Update(1, "listing.md")
	r.Update(2, "rules.txt")
	r.Finish()

	want := "Ingesting 2 files\n[1/2] listing.md\n[2/2] rules.txt\nIngesting complete\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestNewReporterUnderCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("Ingesting").(*CIReporter); !ok {
		t.Error("expected CIReporter when CI is set")
	}
}
