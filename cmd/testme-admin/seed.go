package main

import (
	"context"
	"errors"

	"github.com/mind-engage/testme/internal/quiz"
)

type demoQuestion struct {
	text    string
	answers []string
	correct []int
}

var demo = []demoQuestion{
	{"Which keyword starts a goroutine?", []string{"go", "async", "spawn"}, []int{0}},
	{"Which of these are reference types?", []string{"slice", "map", "array", "struct"}, []int{0, 1}},
	{"What does len(\"héllo\") return?", []string{"5", "6"}, []int{1}},
}

// SeedDemo creates a tag, the demo questions with their answers, and a quiz over them.
func SeedDemo(ctx context.Context, c quiz.Catalog) (quiz.Quiz, error) {
	tag, err := demoTag(ctx, c)
	if err != nil {
		return quiz.Quiz{}, err
	}
	var ids []int64
	for _, d := range demo {
		q, err := c.CreateQuestion(ctx, quiz.Question{Text: d.text, TagIDs: []int64{tag.ID}})
		if err != nil {
			return quiz.Quiz{}, err
		}
		for i, text := range d.answers {
			correct := false
			for _, j := range d.correct {
				correct = correct || i == j
			}
			if _, err := c.CreateAnswer(ctx, quiz.Answer{QuestionID: q.ID, Text: text, IsCorrect: correct}); err != nil {
				return quiz.Quiz{}, err
			}
		}
		ids = append(ids, q.ID)
	}
	return c.CreateQuiz(ctx, quiz.Quiz{
		Name:        "Go basics",
		Description: "A short demo quiz.",
		QuestionIDs: ids,
	})
}

// demoTag creates the "demo" tag, reusing it when an earlier seed left it behind.
func demoTag(ctx context.Context, c quiz.Catalog) (quiz.Tag, error) {
	tag, err := c.CreateTag(ctx, "demo")
	if !errors.Is(err, quiz.ErrValidation) {
		return tag, err
	}
	tags, _, lerr := c.ListTags(ctx, quiz.ListOpts{Q: "demo"})
	if lerr != nil {
		return quiz.Tag{}, lerr
	}
	for _, t := range tags {
		if t.Name == "demo" {
			return t, nil
		}
	}
	return quiz.Tag{}, err
}
