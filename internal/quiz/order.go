package quiz

import "math/rand"

// MaxSeed is the upper bound (inclusive) of attempt seeds.
const MaxSeed = 2_000_000

// OrderQuestions returns ids permuted by seed. The result depends only on
// (ids, seed): a fresh math/rand source seeded with seed drives a
// Fisher-Yates pass from the last index down, j = Intn(i+1). Attempts do not
// persist their order, so changing this changes every in-flight attempt.
func OrderQuestions(ids []int64, seed int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	r := rand.New(rand.NewSource(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func questionIDs(qs []Question) []int64 {
	ids := make([]int64, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
