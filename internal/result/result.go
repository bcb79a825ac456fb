package result

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Word is one recognized word with time boundaries in seconds and a
// posterior confidence in [0, 1]
type Word struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

// Result is the outcome of one utterance: the aligned word sequence, the
// flattened text, and (on early grammar termination) the matched rule id.
// Immutable once produced.
type Result struct {
	Words       []Word
	Text        string
	MatchedRule string
}

// Empty reports whether the result carries no recognized words
func (r *Result) Empty() bool {
	return r == nil || len(r.Words) == 0
}

// WithRule returns a copy annotated with the early-termination rule id,
// leaving the receiver untouched
func (r *Result) WithRule(id string) *Result {
	annotated := *r
	annotated.MatchedRule = id
	return &annotated
}

type xmlWord struct {
	Start      string `xml:"start,attr"`
	End        string `xml:"end,attr"`
	Confidence string `xml:"confidence,attr"`
	Text       string `xml:",chardata"`
}

type xmlInstance struct {
	Words []xmlWord `xml:"word"`
}

type xmlInput struct {
	Mode string `xml:"mode,attr"`
	Text string `xml:",chardata"`
}

type xmlInterpretation struct {
	Instance xmlInstance `xml:"instance"`
	Input    xmlInput    `xml:"input"`
}

type xmlResult struct {
	XMLName        xml.Name          `xml:"result"`
	Interpretation xmlInterpretation `xml:"interpretation"`
	EarlyRes       string            `xml:"earlyres,omitempty"`
}

// Marshal serializes the result as the structured recognition payload sent
// upward on completion. The early-termination marker is appended only when a
// grammar rule matched.
func (r *Result) Marshal() ([]byte, error) {
	doc := xmlResult{
		Interpretation: xmlInterpretation{
			Input: xmlInput{Mode: "speech", Text: r.Text},
		},
		EarlyRes: r.MatchedRule,
	}
	for _, w := range r.Words {
		doc.Interpretation.Instance.Words = append(doc.Interpretation.Instance.Words, xmlWord{
			Start:      fmt.Sprintf("%.3f", w.Start),
			End:        fmt.Sprintf("%.3f", w.End),
			Confidence: fmt.Sprintf("%.3f", w.Confidence),
			Text:       w.Text,
		})
	}

	data, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return data, nil
}

// joinWords flattens a word sequence into the result text
func joinWords(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
