// Package prompts builds the interviewer instruction sent to the LLM
// collaborator for each turn.
package prompts

import (
	"fmt"
	"strings"
	"sync"
)

const baseRules = `You are a professional interviewer conducting a structured, real-time interview.
Behave exactly like a human interviewer.
When the conversation starts, greet the candidate warmly, mention the maximum number of questions, and explain how the interview will be conducted.
When the interview ends, always say: "The interview has ended".

Your responsibilities:
  1. Ask exactly ONE question per turn.
  2. Interpret every candidate message in context: a continuation of their previous answer, a follow-up to your last question, or a request to change direction.
  3. Maintain conversational coherence and adapt naturally.
  4. Keep questions concise, direct, and professional.
  5. Never answer on behalf of the candidate.
  6. If the candidate becomes rude or disruptive, politely end the interview.
  7. You may ask at most %d questions. When the cap is reached, briefly close and state that the interview is concluded.

Tone guidelines:
  1. Acknowledge answers briefly without evaluating them.
  2. Keep questions focused, challenging, and open-ended.
  3. Maintain natural continuity based on previous answers.`

var defaultRoles = map[string]string{
	"junior-software-engineer": `Ask questions suitable for a Junior Software Engineer:
- programming fundamentals
- simple problem-solving and debugging
- core language and framework understanding
- ability to follow guidance and learn quickly`,

	"mid-software-engineer": `Ask questions suitable for a Mid-Level Software Engineer:
- understanding of system components
- intermediate debugging and optimization
- feature ownership and delivery
- collaboration with designers, PMs, and other developers`,

	"senior-software-engineer": `Ask questions suitable for a Senior Software Engineer:
- architecture and scaling decisions
- technical tradeoffs and reasoning
- production reliability and real-world problem solving
- cross-team collaboration and mentoring`,

	"staff-software-engineer": `Ask questions suitable for a Staff Software Engineer:
- org-wide technical direction and influence
- designing systems that span multiple teams
- navigating ambiguity and long-term tradeoffs`,

	"engineering-manager": `Ask questions suitable for an Engineering Manager:
- team building, coaching, and performance management
- delivery planning and stakeholder communication
- balancing technical depth with people leadership`,

	"product-manager": `Ask questions suitable for a Product Manager:
- product sense and prioritization
- working with engineering and design
- metrics, experimentation, and user research`,

	"data-scientist": `Ask questions suitable for a Data Scientist:
- statistics and experiment design
- modeling tradeoffs and evaluation
- communicating findings to non-technical stakeholders`,
}

// Registry holds per-role prompt overrides. The built-in roles can be
// extended from a roles file at startup.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]string
}

// NewRegistry creates a registry preloaded with the built-in roles.
func NewRegistry() *Registry {
	roles := make(map[string]string, len(defaultRoles))
	for k, v := range defaultRoles {
		roles[k] = v
	}
	return &Registry{roles: roles}
}

// Register adds or replaces the override for a role.
func (r *Registry) Register(role, override string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role] = override
}

// Roles returns the registered role tags, for diagnostics.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.roles))
	for k := range r.roles {
		out = append(out, k)
	}
	return out
}

// Instruction composes the system instruction for a role. Unknown roles
// get the base rules plus a generic line derived from the tag, so a new
// role is degraded, not rejected, at this layer.
func (r *Registry) Instruction(role string, maxQuestions int) string {
	r.mu.RLock()
	override, ok := r.roles[role]
	r.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, baseRules, maxQuestions)
	b.WriteString("\n\n")
	if ok {
		b.WriteString(override)
	} else {
		fmt.Fprintf(&b, "Ask questions suitable for a candidate interviewing for the role %q.", humanize(role))
	}
	return b.String()
}

// humanize turns a role tag like "senior-software-engineer" into
// "senior software engineer".
func humanize(role string) string {
	return strings.ReplaceAll(strings.TrimSpace(role), "-", " ")
}
