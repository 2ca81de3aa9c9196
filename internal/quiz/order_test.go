package quiz_test

import (
	"fmt"
	"slices"
	"testing"

	"github.com/mind-engage/testme/internal/quiz"
)

func TestOrderQuestionsDeterministicPermutation(t *testing.T) {
	ids := []int64{3, 7, 11, 19, 23, 42}
	for seed := int64(0); seed < 200; seed++ {
		a := quiz.OrderQuestions(ids, seed)
		b := quiz.OrderQuestions(ids, seed)
		if !slices.Equal(a, b) {
			t.Fatalf("seed %d: got %v then %v", seed, a, b)
		}
		sorted := slices.Clone(a)
		slices.Sort(sorted)
		if !slices.Equal(sorted, ids) {
			t.Fatalf("seed %d: %v is not a permutation of %v", seed, a, ids)
		}
	}
}

func TestOrderQuestionsDoesNotMutateInput(t *testing.T) {
	ids := []int64{1, 2, 3, 4}
	_ = quiz.OrderQuestions(ids, 12345)
	if !slices.Equal(ids, []int64{1, 2, 3, 4}) {
		t.Fatalf("input mutated: %v", ids)
	}
}

func TestOrderQuestionsSeedsDiffer(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	seen := map[string]bool{}
	for seed := int64(0); seed < 50; seed++ {
		o := quiz.OrderQuestions(ids, seed)
		seen[fmt.Sprint(o)] = true
	}
	if len(seen) < 10 {
		t.Fatalf("only %d distinct orders over 50 seeds", len(seen))
	}
}

func TestOrderQuestionsEmptyAndSingle(t *testing.T) {
	if got := quiz.OrderQuestions(nil, 1); len(got) != 0 {
		t.Fatalf("empty: got %v", got)
	}
	if got := quiz.OrderQuestions([]int64{9}, 1); !slices.Equal(got, []int64{9}) {
		t.Fatalf("single: got %v", got)
	}
}

// seedFor finds a seed that orders ids as want.
func seedFor(t *testing.T, ids, want []int64) int64 {
	t.Helper()
	for seed := int64(0); seed <= quiz.MaxSeed; seed++ {
		if slices.Equal(quiz.OrderQuestions(ids, seed), want) {
			return seed
		}
	}
	t.Fatalf("no seed orders %v as %v", ids, want)
	return 0
}
