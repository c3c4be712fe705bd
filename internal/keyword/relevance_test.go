package keyword

import (
	"reflect"
	"testing"
)

func TestRelevanceFilter_Relevant(t *testing.T) {
	f := NewRelevanceFilter("water softener")
	if got := f.Terms(); !reflect.DeepEqual(got, []string{"water", "softener"}) {
		t.Fatalf("unexpected terms %v", got)
	}

	tests := []struct {
		candidate string
		want      bool
	}{
		{"water softeners", true},
		{"softener salt", true},
		{"whole house water filter", true},
		{"soft", true},
		{"garden hose", false},
		{"a b", false},
	}
	for _, tt := range tests {
		if got := f.Relevant(tt.candidate); got != tt.want {
			t.Errorf("Relevant(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestRelevanceFilter_ContainedToken(t *testing.T) {
	f := NewRelevanceFilter("softeners")
	if !f.Relevant("softener reviews") {
		t.Error("expected a token contained in a main term to be relevant")
	}
}

func TestRelevanceFilter_Filter(t *testing.T) {
	f := NewRelevanceFilter("water softener")
	present := map[string]struct{}{"water softener": {}}
	candidates := []string{
		"water softener",
		"Water Softener Cost",
		"garden hose",
		"water softener cost",
		"softener salt",
		"water heater",
	}

	got := f.Filter(candidates, present, 2)
	want := []string{"water softener cost", "softener salt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}

	all := f.Filter(candidates, present, 0)
	if len(all) != 3 {
		t.Errorf("expected 3 unlimited matches, got %v", all)
	}
}

func TestRelevanceFilter_EmptyBase(t *testing.T) {
	f := NewRelevanceFilter("a of")
	if f.Relevant("anything at all") {
		t.Error("expected no candidate to be relevant to a base without main terms")
	}
}
