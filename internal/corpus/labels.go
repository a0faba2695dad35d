package corpus

import "sort"

// LabelSet is the set of distinct entity labels seen in a corpus,
// with an occurrence count per label.
type LabelSet struct {
	counts map[string]int
}

func NewLabelSet(labels ...string) LabelSet {
	s := LabelSet{counts: make(map[string]int, len(labels))}
	for _, l := range labels {
		s.Add(l)
	}
	return s
}

// Add records one occurrence of label. "O" and the empty label are ignored.
func (s *LabelSet) Add(label string) {
	if label == "" || label == "O" {
		return
	}
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[label]++
}

func (s LabelSet) Has(label string) bool {
	_, ok := s.counts[label]
	return ok
}

func (s LabelSet) Len() int {
	return len(s.counts)
}

// Count returns how many times label was added.
func (s LabelSet) Count(label string) int {
	return s.counts[label]
}

// Sorted returns the labels in lexical order.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s.counts))
	for l := range s.counts {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Merge adds every label and count of o into s.
func (s *LabelSet) Merge(o LabelSet) {
	for l, n := range o.counts {
		if s.counts == nil {
			s.counts = make(map[string]int)
		}
		s.counts[l] += n
	}
}

// LabelsOf collects the label set of already converted sentences.
func LabelsOf(sentences []Sentence) LabelSet {
	s := NewLabelSet()
	for _, sent := range sentences {
		for _, ent := range sent.Entities {
			s.Add(ent.Label)
		}
	}
	return s
}
