// Package prompt resolves named agent templates plus layered variables into
// final prompt text. Rendering never fails on missing data: unresolved
// placeholders degrade to blank text through a fixed fallback chain. Only
// configuration mistakes (unknown agent or template) are fatal.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/paideia-labs/paideia/internal/config"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownAgent means no configuration section exists for the agent.
	ErrUnknownAgent = errors.New("prompt: unknown agent")
	// ErrUnknownTemplate means the agent has no template with that name.
	ErrUnknownTemplate = errors.New("prompt: unknown template")
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// benignTokens are JSON-key-like names that appear inside example payloads
// embedded in templates. They are never blanked, so the examples survive
// rendering intact.
var benignTokens = map[string]struct{}{
	"type":           {},
	"content":        {},
	"message":        {},
	"timestamp":      {},
	"request_id":     {},
	"stage":          {},
	"progress":       {},
	"question":       {},
	"answer":         {},
	"feedback":       {},
	"grade":          {},
	"knowledge_type": {},
	"answerability":  {},
	"total_score":    {},
	"sub_scores":     {},
	"weak_areas":     {},
}

// Prompt is the rendered output of one template.
type Prompt struct {
	System string
	User   string
}

type Service struct {
	cfg          config.AgentsConfig
	debugPrompts bool
}

// NewService builds the engine over a loaded agent configuration. The
// configuration is read-only after this point. debugPrompts enables verbose
// logging of rendered prompts; callers pass config.PromptDebugEnabled(),
// which is force-disabled in production.
func NewService(cfg config.AgentsConfig, debugPrompts bool) *Service {
	return &Service{cfg: cfg, debugPrompts: debugPrompts}
}

// BuildPrompt renders the named template for the named agent. The variable
// set is the agent's settings, then its guidelines, then the caller's vars,
// later layers overriding earlier ones on key collision. Missing variables
// never fail the call.
func (s *Service) BuildPrompt(agentName, templateName string, vars map[string]string) (Prompt, error) {
	section, ok := s.cfg[agentName]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %q", ErrUnknownAgent, agentName)
	}
	tpl, ok := section.Templates[templateName]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %q for agent %q", ErrUnknownTemplate, templateName, agentName)
	}

	merged := mergeVariables(section, vars)
	p := Prompt{
		System: render(tpl.System, merged),
		User:   render(tpl.User, merged),
	}

	if s.debugPrompts {
		log.Debug().
			Str("agent", agentName).
			Str("template", templateName).
			Str("system", p.System).
			Str("user", p.User).
			Msg("Rendered prompt")
	}

	return p, nil
}

// GetSetting performs a nested lookup through the agent's settings using a
// dotted key. Any miss at any depth returns the default; it never fails.
func (s *Service) GetSetting(agentName, dottedKey string, defaultValue interface{}) interface{} {
	section, ok := s.cfg[agentName]
	if !ok {
		return defaultValue
	}

	var current interface{} = section.Settings
	for _, part := range strings.Split(dottedKey, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return defaultValue
		}
		current, ok = m[part]
		if !ok {
			return defaultValue
		}
	}
	return current
}

// mergeVariables flattens settings and guidelines with dotted-key prefixes,
// then applies caller vars on top.
func mergeVariables(section config.AgentSection, vars map[string]string) map[string]string {
	merged := make(map[string]string)
	flattenInto(merged, "", section.Settings)
	flattenInto(merged, "", section.Guidelines)
	for k, v := range vars {
		merged[k] = v
	}
	return merged
}

// flattenInto writes nested maps as dotted keys. List values are kept
// verbatim at their own key rather than flattened per element.
func flattenInto(out map[string]string, prefix string, in map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = stringify(v)
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// render applies the three-tier fallback chain:
//  1. strict substitution when every referenced placeholder is known,
//  2. otherwise literal replacement of every known variable,
//  3. then unresolved placeholders are kept when benign or numeric and
//     blanked otherwise.
func render(text string, vars map[string]string) string {
	if complete(text, vars) {
		return substitute(text, vars)
	}

	for k, v := range vars {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if _, ok := benignTokens[name]; ok {
			return match
		}
		if isNumeric(name) {
			return match
		}
		return ""
	})
}

func complete(text string, vars map[string]string) bool {
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := vars[m[1]]; !ok {
			return false
		}
	}
	return true
}

func substitute(text string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		return vars[match[1:len(match)-1]]
	})
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
