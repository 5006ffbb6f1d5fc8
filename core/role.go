package core

// Domain names a partial-result slot of State.
type Domain string

const (
	DomainNews          Domain = "news"
	DomainSocial        Domain = "social"
	DomainDisaster      Domain = "disaster"
	DomainAnswerContext Domain = "answer_context"
)

// Role is a typed worker capability. Each role maps to at most one Domain
// and to a static tool allow-list.
type Role string

const (
	RoleNews        Role = "news"
	RoleSocial      Role = "social"
	RoleDisaster    Role = "disaster"
	RoleLocator     Role = "locator"
	RoleSynthesizer Role = "synthesizer"
)

// Domain returns the slot owned by the role and whether it owns one.
func (r Role) Domain() (Domain, bool) {
	switch r {
	case RoleNews:
		return DomainNews, true
	case RoleSocial:
		return DomainSocial, true
	case RoleDisaster:
		return DomainDisaster, true
	case RoleSynthesizer:
		return DomainAnswerContext, true
	default:
		return "", false
	}
}

// AgentName is the author name used for history messages of the role.
func (r Role) AgentName() string {
	switch r {
	case RoleNews:
		return "NewsAgent"
	case RoleSocial:
		return "SNSAgent"
	case RoleDisaster:
		return "DisasterAgent"
	case RoleLocator:
		return "GPSAgent"
	case RoleSynthesizer:
		return "FinalResponseAgent"
	default:
		return string(r)
	}
}

// GatherRoles returns the roles dispatched in parallel by the gather step.
func GatherRoles() []Role {
	return []Role{RoleNews, RoleSocial, RoleDisaster}
}
