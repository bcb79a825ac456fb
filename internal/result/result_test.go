package result

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestResult_Empty(t *testing.T) {
	var nilResult *Result
	if !nilResult.Empty() {
		t.Error("Expected nil result to be empty")
	}
	if !(&Result{}).Empty() {
		t.Error("Expected zero result to be empty")
	}
	r := &Result{Words: []Word{{Text: "turn"}}}
	if r.Empty() {
		t.Error("Expected result with words to be non-empty")
	}
}

func TestResult_Marshal(t *testing.T) {
	r := &Result{
		Words: []Word{
			{Text: "turn", Start: 0.12, End: 0.32, Confidence: 0.97},
			{Text: "left", Start: 0.34, End: 0.52, Confidence: 0.85},
		},
		Text: "turn left",
	}

	data, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// The payload must parse back as well-formed markup
	var parsed struct {
		Interpretation struct {
			Instance struct {
				Words []struct {
					Start      string `xml:"start,attr"`
					Confidence string `xml:"confidence,attr"`
					Text       string `xml:",chardata"`
				} `xml:"word"`
			} `xml:"instance"`
			Input struct {
				Mode string `xml:"mode,attr"`
				Text string `xml:",chardata"`
			} `xml:"input"`
		} `xml:"interpretation"`
	}
	if err := xml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Marshaled result is not well-formed: %v", err)
	}

	words := parsed.Interpretation.Instance.Words
	if len(words) != 2 {
		t.Fatalf("Expected 2 word elements, got %d", len(words))
	}
	if words[0].Text != "turn" || words[0].Start != "0.120" || words[0].Confidence != "0.970" {
		t.Errorf("Unexpected first word element: %+v", words[0])
	}
	if parsed.Interpretation.Input.Mode != "speech" {
		t.Errorf("Expected input mode speech, got %q", parsed.Interpretation.Input.Mode)
	}
	if parsed.Interpretation.Input.Text != "turn left" {
		t.Errorf("Expected input text 'turn left', got %q", parsed.Interpretation.Input.Text)
	}
	if strings.Contains(string(data), "<earlyres>") {
		t.Error("Early-termination marker must be absent without a rule match")
	}
}

func TestResult_WithRule(t *testing.T) {
	r := &Result{
		Words: []Word{{Text: "turn", Start: 0.1, End: 0.3, Confidence: 0.9}},
		Text:  "turn",
	}

	annotated := r.WithRule("command")
	if annotated.MatchedRule != "command" {
		t.Errorf("Expected annotated rule 'command', got %q", annotated.MatchedRule)
	}
	if r.MatchedRule != "" {
		t.Errorf("Annotation must not mutate the original, got %q", r.MatchedRule)
	}
	if annotated.Text != r.Text || len(annotated.Words) != len(r.Words) {
		t.Error("Expected annotated copy to carry the original words and text")
	}
}

func TestResult_MarshalEarlyTermination(t *testing.T) {
	r := &Result{
		Words:       []Word{{Text: "turn", Start: 0.1, End: 0.3, Confidence: 0.9}},
		Text:        "turn",
		MatchedRule: "command",
	}

	data, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "<earlyres>command</earlyres>") {
		t.Errorf("Expected early-termination marker in payload, got %s", data)
	}
}
