// Package prompt builds the provider request for one chat turn: approval
// derivation, instruction selection, history windowing and script inlining.
// Everything here is pure; persistence is the caller's concern.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/domain"
)

type Approval string

const (
	Approved    Approval = "approved"
	NotApproved Approval = "not_approved"
)

// historyWindow caps how many prior turns are forwarded to the provider.
const historyWindow = 12

// maxAttachments caps how many scripts one turn may inline; extra selected
// ids are ignored, not errored.
const maxAttachments = 3

// maxScriptChars is the per-script inline ceiling before truncation.
const maxScriptChars = 8000

// ScriptContent pairs script metadata with its loaded content.
type ScriptContent struct {
	Script  domain.Script
	Content string
}

type AssembleRequest struct {
	Message   string
	History   []domain.Turn
	Scripts   []ScriptContent
	ImageName string
	HasImage  bool
}

// ProviderRequest is the fully composed payload for the completion provider.
type ProviderRequest struct {
	Approval     Approval
	Instructions string
	History      []domain.Turn
	UserContent  string
}

// DeriveApproval inspects only the first line of the message. The header
// must match exactly; a near miss is not approval.
func DeriveApproval(message string) Approval {
	firstLine, _, _ := strings.Cut(message, "\n")
	if strings.TrimRight(firstLine, "\r") == ApprovedHeader {
		return Approved
	}
	return NotApproved
}

// WindowHistory keeps only well-formed turns and at most the last
// historyWindow of them, preserving order.
func WindowHistory(turns []domain.Turn) []domain.Turn {
	kept := make([]domain.Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Content == "" {
			continue
		}
		if turn.Role != domain.RoleUser && turn.Role != domain.RoleAssistant {
			continue
		}
		kept = append(kept, turn)
	}
	if len(kept) > historyWindow {
		kept = kept[len(kept)-historyWindow:]
	}
	return kept
}

// Assemble produces the provider request for one turn.
func Assemble(req AssembleRequest) ProviderRequest {
	approval := DeriveApproval(req.Message)

	var b strings.Builder
	b.WriteString(req.Message)

	scripts := req.Scripts
	if len(scripts) > maxAttachments {
		scripts = scripts[:maxAttachments]
	}
	for _, sc := range scripts {
		b.WriteString("\n\n")
		b.WriteString(inlineScript(sc))
	}

	if req.HasImage {
		name := req.ImageName
		if name == "" {
			name = "screenshot"
		}
		fmt.Fprintf(&b, "\n\n[image attached: %s]", name)
	}

	return ProviderRequest{
		Approval:     approval,
		Instructions: Instructions(approval),
		History:      WindowHistory(req.History),
		UserContent:  b.String(),
	}
}

// inlineScript wraps one script in a labeled block, truncated to
// maxScriptChars and with every line numbered from 1.
func inlineScript(sc ScriptContent) string {
	content := sc.Content
	truncated := false
	if utf8.RuneCountInString(content) > maxScriptChars {
		runes := []rune(content)
		content = string(runes[:maxScriptChars])
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- attached script: %s (%s) ---\n", sc.Script.Name, sc.Script.Language)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		fmt.Fprintf(&b, "%d: %s\n", i+1, line)
	}
	if truncated {
		b.WriteString("... [truncated]\n")
	}
	b.WriteString("--- end of script ---")
	return b.String()
}
