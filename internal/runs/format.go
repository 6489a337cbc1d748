package runs

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/taskpad/internal/providers"
	"github.com/HendryAvila/taskpad/internal/scratchpad"
)

const (
	noOutput          = "(no output)"
	previewRunes      = 500
	defaultSysPrompt  = "You are a focused subagent working on one task from a shared scratchpad. Answer the task directly. Cite sources when you use them."
	maxAttachmentSize = 64 << 10
)

// buildPrompt combines the caller's prompt with the task and its shared
// context.
func buildPrompt(req RunRequest, sp *scratchpad.Scratchpad, entry *scratchpad.Entry) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	fmt.Fprintf(&b, "\n\n## Task %s\n%s\n", entry.TaskID, strings.TrimSpace(entry.TaskInfo))
	if notes := strings.TrimSpace(entry.Scratchpad); notes != "" {
		fmt.Fprintf(&b, "\n## Previous notes\n%s\n", notes)
	}
	if mem := strings.TrimSpace(sp.CommonMemory); mem != "" {
		fmt.Fprintf(&b, "\n## Shared memory\n%s\n", mem)
	}
	return strings.TrimRight(b.String(), "\n")
}

func systemPrompt(req RunRequest) string {
	if s := strings.TrimSpace(req.SysPrompt); s != "" {
		return s
	}
	return defaultSysPrompt
}

// writeBack renders the blocks appended to the entry's scratchpad and
// comments fields.
func writeBack(stamp, runID string, res *providers.InferResult) (scratch, comments string) {
	header := fmt.Sprintf("### %s run %s", stamp, runID)

	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = noOutput
	}
	scratch = header + "\n" + text

	var c strings.Builder
	c.WriteString(header)
	if res.Model != "" {
		fmt.Fprintf(&c, "\nModel: %s", res.Model)
	}
	if len(res.Sources) > 0 {
		c.WriteString("\nSources:")
		for _, s := range res.Sources {
			if s.Title != "" {
				fmt.Fprintf(&c, "\n- %s (%s)", s.Title, s.URL)
			} else {
				fmt.Fprintf(&c, "\n- %s", s.URL)
			}
		}
	}
	if len(res.Code) > 0 {
		c.WriteString("\nCode:")
		for _, code := range res.Code {
			fmt.Fprintf(&c, "\n```\n%s\n```", code)
		}
	}
	if len(res.ExecutionResults) > 0 {
		c.WriteString("\nExecution results:")
		for _, r := range res.ExecutionResults {
			fmt.Fprintf(&c, "\n```\n%s\n```", r)
		}
	}
	return scratch, c.String()
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
