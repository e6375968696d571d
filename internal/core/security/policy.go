// Package security decides who may act as a journal administrator.
//
// Administrators are the only callers allowed to touch golden numbers and to
// reserve specific numbers. The rule is a CEL expression so operators can
// change it without a release, e.g.
//
//	username in admins || "registry-admin" in roles
package security

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// DefaultAdminExpression grants admin to configured usernames and to the "admin" role.
const DefaultAdminExpression = `username in admins || "admin" in roles`

// Subject is what the admin policy sees about a caller.
type Subject struct {
	Username string
	Roles    []string
}

// AdminPolicy evaluates a compiled CEL expression against a Subject.
type AdminPolicy struct {
	admins  []string
	program cel.Program
}

// NewAdminPolicy compiles expression. admins is exposed to the expression as
// the "admins" list; usernames are compared case-insensitively.
func NewAdminPolicy(expression string, admins []string) (*AdminPolicy, error) {
	if strings.TrimSpace(expression) == "" {
		expression = DefaultAdminExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("username", cel.StringType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("admins", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile admin policy: %w", iss.Err())
	}
	if ast.OutputType().String() != cel.BoolType.String() {
		return nil, fmt.Errorf("admin policy must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build admin policy program: %w", err)
	}

	normalized := make([]string, 0, len(admins))
	for _, a := range admins {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			normalized = append(normalized, a)
		}
	}

	return &AdminPolicy{
		admins:  normalized,
		program: prg,
	}, nil
}

// IsAdmin evaluates the policy. Evaluation errors deny.
func (p *AdminPolicy) IsAdmin(s Subject) bool {
	if p == nil {
		return false
	}
	roles := s.Roles
	if roles == nil {
		roles = []string{}
	}
	out, _, err := p.program.Eval(map[string]any{
		"username": strings.ToLower(s.Username),
		"roles":    roles,
		"admins":   p.admins,
	})
	if err != nil {
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}
