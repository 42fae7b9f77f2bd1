package middleware

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
)

// RequirementKind classifies what a route demands of the caller
type RequirementKind int

const (
	// RequirePublic lets any request through, identity or not
	RequirePublic RequirementKind = iota
	// RequireAuthenticated demands any valid principal
	RequireAuthenticated
	// RequireRoleIn demands a principal whose role is in the rule's set
	RequireRoleIn
)

// Requirement is what a matched rule demands
type Requirement struct {
	Kind  RequirementKind
	Roles []auth.Role
}

// Public builds a requirement letting every request through
func Public() Requirement {
	return Requirement{Kind: RequirePublic}
}

// Authenticated builds a requirement demanding any valid principal
func Authenticated() Requirement {
	return Requirement{Kind: RequireAuthenticated}
}

// RoleIn builds a requirement demanding one of the given roles
func RoleIn(roles ...auth.Role) Requirement {
	return Requirement{Kind: RequireRoleIn, Roles: roles}
}

// Rule maps (method, path pattern) to a requirement. Patterns are
// segment-based: "{name}" matches one segment, "**" as the final segment
// matches any remainder.
type Rule struct {
	// Method is an HTTP method, or "ANY"
	Method      string
	Pattern     string
	Requirement Requirement
}

// Policy is the static route authorization table. Rules are evaluated most
// specific first; within equal specificity, declaration order wins. A
// request matching no rule requires authentication (fail closed).
type Policy struct {
	rules   []Rule
	metrics *observability.Metrics
}

// NewPolicy builds a policy from an ordered rule list. metrics may be nil.
func NewPolicy(rules []Rule, metrics *observability.Metrics) *Policy {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	// stable keeps declaration order within equal specificity
	sort.SliceStable(ordered, func(i, j int) bool {
		return moreSpecific(ordered[i].Pattern, ordered[j].Pattern)
	})
	return &Policy{rules: ordered, metrics: metrics}
}

// moreSpecific orders patterns: more literal segments first, then patterns
// without a trailing "**", then longer patterns
func moreSpecific(a, b string) bool {
	la, wa, da := patternShape(a)
	lb, wb, db := patternShape(b)
	if la != lb {
		return la > lb
	}
	if da != db {
		return !da
	}
	return la+wa > lb+wb
}

// patternShape returns literal segment count, wildcard segment count, and
// whether the pattern ends in "**"
func patternShape(pattern string) (literals, wildcards int, doubleWild bool) {
	for _, seg := range splitPath(pattern) {
		switch {
		case seg == "**":
			doubleWild = true
		case seg == "*" || (strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")):
			wildcards++
		default:
			literals++
		}
	}
	return literals, wildcards, doubleWild
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matches reports whether the pattern covers the path
func matches(pattern, path string) bool {
	pat := splitPath(pattern)
	segs := splitPath(path)

	for i, seg := range pat {
		if seg == "**" {
			// matches any remainder, including none
			return i == len(pat)-1
		}
		if i >= len(segs) {
			return false
		}
		if seg == "*" || (strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")) {
			continue
		}
		if seg != segs[i] {
			return false
		}
	}
	return len(pat) == len(segs)
}

func methodMatches(ruleMethod, method string) bool {
	return ruleMethod == "" || ruleMethod == "ANY" || ruleMethod == method
}

// Evaluate returns the requirement for a request. An unmatched route
// requires authentication.
func (p *Policy) Evaluate(method, path string) Requirement {
	for _, rule := range p.rules {
		if methodMatches(rule.Method, method) && matches(rule.Pattern, path) {
			return rule.Requirement
		}
	}
	return Authenticated()
}

func (p *Policy) countDecision(decision string) {
	if p.metrics != nil {
		p.metrics.AuthzDecisionsTotal.WithLabelValues(decision).Inc()
	}
}

// Handler enforces the policy against the principal the Authenticator
// attached. 401 when no identity is present, 403 when the identity lacks
// the required role.
func (p *Policy) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requirement := p.Evaluate(r.Method, r.URL.Path)
		if requirement.Kind == RequirePublic {
			p.countDecision("allowed")
			next.ServeHTTP(w, r)
			return
		}

		principal := GetPrincipal(r)
		if principal == nil {
			p.countDecision("unauthenticated")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		if requirement.Kind == RequireRoleIn && !principal.HasRole(requirement.Roles...) {
			p.countDecision("forbidden")
			httputil.WriteForbidden(w, "insufficient permissions")
			return
		}

		p.countDecision("allowed")
		next.ServeHTTP(w, r)
	})
}

// DefaultRules is the built-in route authorization table
func DefaultRules() []Rule {
	return []Rule{
		{Method: "POST", Pattern: "/api/auth/register", Requirement: Public()},
		{Method: "POST", Pattern: "/api/auth/login", Requirement: Public()},
		{Method: "POST", Pattern: "/api/auth/verify", Requirement: Public()},
		{Method: "POST", Pattern: "/api/auth/logout", Requirement: Authenticated()},
		{Method: "POST", Pattern: "/api/auth/logout/all", Requirement: Authenticated()},
		{Method: "GET", Pattern: "/api/auth/me", Requirement: Authenticated()},

		{Method: "GET", Pattern: "/api/users", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "POST", Pattern: "/api/users", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "GET", Pattern: "/api/users/{id}", Requirement: Authenticated()},
		{Method: "PUT", Pattern: "/api/users/{id}", Requirement: Authenticated()},
		{Method: "PUT", Pattern: "/api/users/{id}/password", Requirement: Authenticated()},
		{Method: "PUT", Pattern: "/api/users/{id}/role", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "PUT", Pattern: "/api/users/{id}/status", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "DELETE", Pattern: "/api/users/{id}", Requirement: RoleIn(auth.RoleAdmin)},

		{Method: "POST", Pattern: "/api/courses", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "POST", Pattern: "/api/courses/{id}/lessons", Requirement: RoleIn(auth.RoleTeacher, auth.RoleAdmin)},
		{Method: "PUT", Pattern: "/api/courses/**", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "DELETE", Pattern: "/api/courses/**", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "GET", Pattern: "/api/courses/**", Requirement: Authenticated()},

		{Method: "GET", Pattern: "/api/lessons/**", Requirement: Authenticated()},
		{Method: "PUT", Pattern: "/api/lessons/**", Requirement: RoleIn(auth.RoleTeacher, auth.RoleAdmin)},
		{Method: "DELETE", Pattern: "/api/lessons/**", Requirement: RoleIn(auth.RoleTeacher, auth.RoleAdmin)},

		{Method: "GET", Pattern: "/api/enrollments", Requirement: RoleIn(auth.RoleStudent, auth.RoleAdmin)},
		{Method: "POST", Pattern: "/api/enrollments", Requirement: RoleIn(auth.RoleStudent, auth.RoleAdmin)},
		{Method: "GET", Pattern: "/api/enrollments/{id}", Requirement: RoleIn(auth.RoleStudent, auth.RoleAdmin)},
		{Method: "GET", Pattern: "/api/enrollments/{id}/progress", Requirement: RoleIn(auth.RoleStudent, auth.RoleAdmin)},
		{Method: "PUT", Pattern: "/api/enrollments/{id}/complete_lesson/{lessonID}", Requirement: RoleIn(auth.RoleStudent, auth.RoleAdmin)},

		{Method: "ANY", Pattern: "/api/reviews/**", Requirement: Authenticated()},

		{Method: "POST", Pattern: "/api/notifications", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "DELETE", Pattern: "/api/notifications/{id}", Requirement: RoleIn(auth.RoleAdmin)},
		{Method: "ANY", Pattern: "/api/notifications/**", Requirement: Authenticated()},

		{Method: "GET", Pattern: "/api/reports/**", Requirement: RoleIn(auth.RoleAdmin)},

		{Method: "ANY", Pattern: "/public/**", Requirement: Public()},
	}
}

// ruleFile is the YAML shape for an external rule table
type ruleFile struct {
	Rules []struct {
		Method      string   `yaml:"method"`
		Pattern     string   `yaml:"pattern"`
		Requirement string   `yaml:"requirement"`
		Roles       []string `yaml:"roles"`
	} `yaml:"rules"`
}

// LoadRulesFile reads an authorization rule table from a YAML file. The
// requirement field is "public", "authenticated" or "roles" (with a
// non-empty roles list).
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, raw := range file.Rules {
		rule := Rule{Method: strings.ToUpper(raw.Method), Pattern: raw.Pattern}
		if rule.Pattern == "" {
			return nil, fmt.Errorf("rule %d: pattern is required", i)
		}
		switch strings.ToLower(raw.Requirement) {
		case "public":
			rule.Requirement = Public()
		case "authenticated":
			rule.Requirement = Authenticated()
		case "roles":
			if len(raw.Roles) == 0 {
				return nil, fmt.Errorf("rule %d: roles requirement needs a non-empty role list", i)
			}
			roles := make([]auth.Role, 0, len(raw.Roles))
			for _, r := range raw.Roles {
				role := auth.Role(strings.ToUpper(r))
				if !role.Valid() {
					return nil, fmt.Errorf("rule %d: unknown role %q", i, r)
				}
				roles = append(roles, role)
			}
			rule.Requirement = RoleIn(roles...)
		default:
			return nil, fmt.Errorf("rule %d: unknown requirement %q", i, raw.Requirement)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
