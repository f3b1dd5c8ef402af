package security

import "regexp"

// EvalPolicy is a textual, defence-in-depth filter over eval() source code.
// It is NOT a security boundary — a determined caller can trivially encode
// around any of these patterns. Real isolation, if needed, belongs in the
// driver's page sandboxing, not here.
type EvalPolicy struct {
	forbidden []*regexp.Regexp
}

func NewEvalPolicy(patterns []string) *EvalPolicy {
	p := &EvalPolicy{}
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			continue
		}
		p.forbidden = append(p.forbidden, re)
	}
	return p
}

// Check returns the first forbidden pattern matched, or "" if code passes.
func (p *EvalPolicy) Check(code string) string {
	for _, re := range p.forbidden {
		if re.MatchString(code) {
			return re.String()
		}
	}
	return ""
}
