package rbac

const (
	RoleAnonymous = "anonymous"
	RoleUser      = "user"
	RoleAdmin     = "admin"
)

const (
	PermTagCreate        = "tag:create"
	PermTagModify        = "tag:modify"
	PermQuestionCreate   = "question:create"
	PermAnswerCreate     = "answer:create"
	PermQuizCreate       = "quiz:create"
	PermContentModifyAny = "content:modify-any"
	PermUserModifyAny    = "user:modify-any"
	PermUserViewEmail    = "user:view-email"
)

// Default policy. Reads are public and not listed.
var RolePermissions = map[string][]string{
	RoleAnonymous: {},
	RoleUser: {
		PermTagCreate,
		PermQuestionCreate,
		PermAnswerCreate,
		PermQuizCreate,
	},
	RoleAdmin: {
		"*", // everything
	},
}
