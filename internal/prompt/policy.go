// Package prompt decides what text is sent to the generation provider for a
// user message.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

type Mode string

const (
	// ModeDirect forwards the user message unmodified.
	ModeDirect Mode = "direct"
	// ModeTemplate wraps the message in a grounding template.
	ModeTemplate Mode = "template"
	// ModeSession keeps per-caller history and sends only the latest turn.
	ModeSession Mode = "session"
)

// Policy is the prompt-construction policy. It is fixed for the lifetime of
// the process and applied to every request.
type Policy struct {
	Mode              Mode
	Template          string
	Domain            string
	SystemInstruction string
	EnableSearch      bool

	tmpl *template.Template
}

type templateData struct {
	Message string
	Domain  string
}

// New validates the policy and compiles its template.
func New(p Policy) (*Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Mode == ModeTemplate {
		tmpl, err := template.New("prompt").Option("missingkey=error").Parse(p.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid prompt template: %w", err)
		}
		p.tmpl = tmpl

		// A dry run catches unknown fields and templates that drop the message.
		out, err := p.Build(messageSentinel)
		if err != nil {
			return nil, fmt.Errorf("invalid prompt template: %w", err)
		}
		if !strings.Contains(out, messageSentinel) {
			return nil, fmt.Errorf("prompt template must render {{.Message}}")
		}
	}
	return &p, nil
}

const messageSentinel = "\x00relay-message\x00"

func (p Policy) Validate() error {
	switch p.Mode {
	case ModeDirect, ModeSession:
	case ModeTemplate:
		if strings.TrimSpace(p.Domain) == "" {
			return fmt.Errorf("template mode requires a grounding domain")
		}
		if _, err := template.New("prompt").Parse(p.Template); err != nil {
			return fmt.Errorf("invalid prompt template: %w", err)
		}
	default:
		return fmt.Errorf("unknown prompt mode %q", p.Mode)
	}
	return nil
}

// Stateful reports whether the policy keeps conversation history.
func (p *Policy) Stateful() bool {
	return p.Mode == ModeSession
}

// Build returns the user-turn text for message.
func (p *Policy) Build(message string) (string, error) {
	if p.Mode != ModeTemplate {
		return message, nil
	}

	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, templateData{Message: message, Domain: p.Domain}); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return sb.String(), nil
}

// Instruction returns the system instruction bound to the provider. Only the
// session mode carries one; the grounding restriction is appended when a
// domain is configured.
func (p *Policy) Instruction() string {
	if p.Mode != ModeSession {
		return ""
	}

	instruction := strings.TrimSpace(p.SystemInstruction)
	if p.Domain == "" {
		return instruction
	}

	restriction := fmt.Sprintf("Basa le risposte esclusivamente su informazioni provenienti da %s. Se non trovi informazioni pertinenti, dillo senza inventare nulla.", p.Domain)
	if instruction == "" {
		return restriction
	}
	return instruction + "\n\n" + restriction
}

// Search reports whether the provider's web-search tool should be enabled.
func (p *Policy) Search() bool {
	return p.Mode == ModeSession && p.EnableSearch
}
