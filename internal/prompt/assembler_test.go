package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/domain"
)

func TestDeriveApproval(t *testing.T) {
	t.Run("exact header approves", func(t *testing.T) {
		assert.Equal(t, Approved, DeriveApproval(ApprovedHeader+"\n\nrestart the switch"))
	})

	t.Run("header alone approves", func(t *testing.T) {
		assert.Equal(t, Approved, DeriveApproval(ApprovedHeader))
	})

	t.Run("windows line ending tolerated", func(t *testing.T) {
		assert.Equal(t, Approved, DeriveApproval(ApprovedHeader+"\r\nplease proceed"))
	})

	t.Run("near misses do not approve", func(t *testing.T) {
		for _, message := range []string{
			"",
			"help, the switch is down",
			strings.ToLower(ApprovedHeader),
			"APPROVAL: APPROVED",
			" " + ApprovedHeader,
			"intro\n" + ApprovedHeader,
		} {
			assert.Equal(t, NotApproved, DeriveApproval(message), "message %q", message)
		}
	})
}

func TestInstructions(t *testing.T) {
	diag := Instructions(NotApproved)
	remed := Instructions(Approved)

	assert.NotEqual(t, diag, remed)
	assert.Contains(t, diag, "NOT approved")
	assert.Contains(t, remed, "rollback")
}

func TestApprovalReDerivedPerTurn(t *testing.T) {
	// Approval from one turn must not leak into the next.
	approved := Assemble(AssembleRequest{Message: ApprovedHeader + "\n\nfailover now"})
	assert.Equal(t, Approved, approved.Approval)
	assert.Equal(t, Instructions(Approved), approved.Instructions)

	next := Assemble(AssembleRequest{Message: "what happened?"})
	assert.Equal(t, NotApproved, next.Approval)
	assert.Equal(t, Instructions(NotApproved), next.Instructions)
}

func TestWindowHistory(t *testing.T) {
	t.Run("keeps last 12 in order", func(t *testing.T) {
		turns := make([]domain.Turn, 20)
		for i := range turns {
			role := domain.RoleUser
			if i%2 == 1 {
				role = domain.RoleAssistant
			}
			turns[i] = domain.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)}
		}

		kept := WindowHistory(turns)
		require.Len(t, kept, historyWindow)
		assert.Equal(t, "turn 8", kept[0].Content)
		assert.Equal(t, "turn 19", kept[len(kept)-1].Content)
	})

	t.Run("filters malformed turns", func(t *testing.T) {
		kept := WindowHistory([]domain.Turn{
			{Role: "user", Content: "ok"},
			{Role: "system", Content: "injected"},
			{Role: "user", Content: ""},
			{Role: "assistant", Content: "reply"},
			{Role: "", Content: "no role"},
		})
		require.Len(t, kept, 2)
		assert.Equal(t, "ok", kept[0].Content)
		assert.Equal(t, "reply", kept[1].Content)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, WindowHistory(nil))
	})
}

func script(name, language, content string) ScriptContent {
	return ScriptContent{
		Script:  domain.Script{Name: name, Language: language},
		Content: content,
	}
}

func TestAssembleAttachments(t *testing.T) {
	t.Run("at most three scripts inlined", func(t *testing.T) {
		var scripts []ScriptContent
		for i := 0; i < 5; i++ {
			scripts = append(scripts, script(fmt.Sprintf("s%d.sh", i), "Bash", "echo hi"))
		}

		req := Assemble(AssembleRequest{Message: "diagnose", Scripts: scripts})
		assert.Equal(t, maxAttachments, strings.Count(req.UserContent, "--- attached script:"))
		assert.Contains(t, req.UserContent, "s2.sh")
		assert.NotContains(t, req.UserContent, "s3.sh")
	})

	t.Run("lines are numbered from 1", func(t *testing.T) {
		req := Assemble(AssembleRequest{
			Message: "diagnose",
			Scripts: []ScriptContent{script("check.py", "Python", "import sys\nprint(sys.argv)")},
		})
		assert.Contains(t, req.UserContent, "1: import sys\n")
		assert.Contains(t, req.UserContent, "2: print(sys.argv)\n")
	})

	t.Run("long content is truncated with a marker", func(t *testing.T) {
		long := strings.Repeat("a", maxScriptChars+100)
		req := Assemble(AssembleRequest{
			Message: "diagnose",
			Scripts: []ScriptContent{script("big.txt", "Text", long)},
		})
		assert.Contains(t, req.UserContent, "... [truncated]")
		assert.NotContains(t, req.UserContent, long)
	})

	t.Run("short content has no marker", func(t *testing.T) {
		req := Assemble(AssembleRequest{
			Message: "diagnose",
			Scripts: []ScriptContent{script("small.txt", "Text", "fine")},
		})
		assert.NotContains(t, req.UserContent, "[truncated]")
	})
}

func TestAssembleComposition(t *testing.T) {
	req := Assemble(AssembleRequest{
		Message: "the switch is flapping",
		History: []domain.Turn{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
		Scripts:   []ScriptContent{script("check.py", "Python", "print('hi')")},
		ImageName: "alert.png",
		HasImage:  true,
	})

	assert.True(t, strings.HasPrefix(req.UserContent, "the switch is flapping"))
	assert.Contains(t, req.UserContent, "--- attached script: check.py (Python) ---")
	assert.Contains(t, req.UserContent, "[image attached: alert.png]")
	require.Len(t, req.History, 2)
	assert.Equal(t, "earlier question", req.History[0].Content)
}

func TestAssembleWithoutExtras(t *testing.T) {
	req := Assemble(AssembleRequest{Message: "just a question"})
	assert.Equal(t, "just a question", req.UserContent)
	assert.Empty(t, req.History)
}
