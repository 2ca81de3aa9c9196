package quiz

import "sort"

// ChoiceMode says how many answers a question accepts.
type ChoiceMode int

const (
	Single ChoiceMode = iota
	Multiple
)

func (m ChoiceMode) String() string {
	if m == Multiple {
		return "multiple"
	}
	return "single"
}

// IsMultipleChoice reports whether more than one answer is marked correct.
func IsMultipleChoice(answers []Answer) bool {
	n := 0
	for _, a := range answers {
		if a.IsCorrect {
			n++
		}
	}
	return n > 1
}

func ModeFor(answers []Answer) ChoiceMode {
	if IsMultipleChoice(answers) {
		return Multiple
	}
	return Single
}

// NormalizeSelection validates raw answer ids against the question's answers
// and returns them deduplicated and sorted.
func NormalizeSelection(mode ChoiceMode, answers []Answer, raw []int64) ([]int64, error) {
	if len(raw) == 0 {
		return nil, NewValidationError("answers", "This field is required.")
	}
	valid := make(map[int64]bool, len(answers))
	for _, a := range answers {
		valid[a.ID] = true
	}
	seen := make(map[int64]bool, len(raw))
	out := make([]int64, 0, len(raw))
	verr := &ValidationError{}
	for _, id := range raw {
		if !valid[id] {
			verr.Add("answers", "Select a valid choice. That choice is not one of the available choices.")
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if !verr.Empty() {
		return nil, verr
	}
	if mode == Single && len(out) > 1 {
		return nil, NewValidationError("answers", "Select exactly one choice.")
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// IsResponseCorrect reports whether selected equals the set of correct answer
// ids. There is no partial credit.
func IsResponseCorrect(selected []int64, answers []Answer) bool {
	correct := map[int64]bool{}
	for _, a := range answers {
		if a.IsCorrect {
			correct[a.ID] = true
		}
	}
	got := map[int64]bool{}
	for _, id := range selected {
		got[id] = true
	}
	if len(got) != len(correct) {
		return false
	}
	for id := range got {
		if !correct[id] {
			return false
		}
	}
	return true
}
