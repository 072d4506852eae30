package agent

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/agentcore/internal/tools/policy"
)

// DefaultMaxObservationSize bounds a single Observation payload field before
// persistence (64KB), preventing memory exhaustion and outsized state-store
// writes from a chatty tool.
const DefaultMaxObservationSize = 64 * 1024

// builtinSecretPatterns detects common secret shapes in tool output before
// it is folded into conversation history or persisted state.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w-\.]+`),
	regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

// ObservationGuard controls how tool results are redacted/truncated before
// they are recorded in an Observation event or persisted state. Grounded on
// the teacher's ToolResultGuard, adapted from its `Content string` shape to
// this module's `{success, payload}` result (spec §8's secret-sanitization
// invariant: raw tool output never reaches persisted state or history
// unredacted).
type ObservationGuard struct {
	Enabled         bool
	MaxChars        int
	Denylist        []string
	RedactPatterns  []string
	RedactionText   string
	SanitizeSecrets bool
}

// DefaultObservationGuard returns a guard with secret sanitization and a
// 64KB cap enabled, matching the envelope's default posture.
func DefaultObservationGuard() ObservationGuard {
	return ObservationGuard{
		Enabled:         true,
		MaxChars:        DefaultMaxObservationSize,
		SanitizeSecrets: true,
	}
}

func (g ObservationGuard) active() bool {
	return g.Enabled || g.MaxChars > 0 || len(g.Denylist) > 0 || len(g.RedactPatterns) > 0 || g.SanitizeSecrets
}

// Apply redacts and truncates result in place, returning the guarded copy.
// Denylisted tools have their entire payload replaced.
func (g ObservationGuard) Apply(toolName string, result ToolResult, resolver *policy.Resolver) ToolResult {
	if !g.active() {
		return result
	}

	redaction := strings.TrimSpace(g.RedactionText)
	if redaction == "" {
		redaction = "[REDACTED]"
	}

	if len(g.Denylist) > 0 && matchesToolPatterns(g.Denylist, toolName, resolver) {
		result.Payload = map[string]any{"redacted": true}
		return result
	}

	for key, value := range result.Payload {
		s, ok := value.(string)
		if !ok {
			continue
		}
		result.Payload[key] = g.sanitizeString(s, redaction)
	}
	result.Detail = g.sanitizeString(result.Detail, redaction)
	return result
}

func (g ObservationGuard) sanitizeString(s, redaction string) string {
	if s == "" {
		return s
	}
	if g.SanitizeSecrets {
		for _, re := range builtinSecretPatterns {
			s = re.ReplaceAllString(s, redaction)
		}
	}
	for _, pattern := range g.RedactPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		s = re.ReplaceAllString(s, redaction)
	}
	if g.MaxChars > 0 && len(s) > g.MaxChars {
		s = s[:g.MaxChars] + "...[truncated]"
	}
	return s
}

// DetectSecrets scans content for potential secrets, returning the names of
// the patterns that matched. Useful for logging or alerting.
func DetectSecrets(content string) []string {
	if content == "" {
		return nil
	}
	names := []string{"api_key", "bearer_token", "aws_key", "generic_secret", "private_key"}
	var matches []string
	for i, re := range builtinSecretPatterns {
		if re.MatchString(content) {
			matches = append(matches, names[i])
		}
	}
	return matches
}
