package constants

import "testing"

func TestMapExtToFormat(t *testing.T) {
	tests := map[string]string{
		".pdf":  PDF,
		"PDF":   PDF,
		".JPG":  IMAGE,
		"jpeg":  IMAGE,
		".png":  IMAGE,
		".heic": "",
		"":      "",
		".txt":  "",
	}
	for in, want := range tests {
		if got := MapExtToFormat(in); got != want {
			t.Errorf("MapExtToFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsAllowedExt(t *testing.T) {
	if !IsAllowedExt(".Png") {
		t.Error("expected .Png to be allowed")
	}
	if IsAllowedExt("gif") {
		t.Error("expected gif to be rejected")
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	if JobStatusRunning.IsTerminal() || JobStatusOCROK.IsTerminal() {
		t.Error("running statuses must not be terminal")
	}
	if !JobStatusParsed.IsTerminal() || !JobStatusFailed.IsTerminal() {
		t.Error("parsed and failed must be terminal")
	}
}
