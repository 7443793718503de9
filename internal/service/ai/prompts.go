package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
)

const historyLimit = 10

const interpretSystemPrompt = `You are the language layer of an analytics request intake desk.
You never talk to the user. You read the user's latest message and report, as JSON, what it tells us.
Only report values the user actually stated. Never invent values and never repeat values from earlier turns unless the user restates them.
Use the exact field names you are given. List-valued fields must be JSON arrays of strings.
Set "intent" only when the user says what kind of analytics help they need (a one-off report, a dashboard, or an update to an existing report); otherwise leave it empty.
If the message contains nothing usable, set "understood" to false.`

const interpretFormat = `{"understood": true, "intent": "", "fields": {"<field name>": "<value>" or ["<item>", "..."]}}`

const summarySystemPrompt = `You summarise analytics requests for the analytics team.
Write one concise paragraph followed by three bullet points with the key requirements and, if possible, a level-of-effort statement.
Do not invent details that are not in the request.`

// phaseGuidance tells the model what the coordinator is waiting for.
func phaseGuidance(req Request) string {
	switch req.Phase {
	case intake.PhaseCollectingBasicInfo:
		return "We are collecting the requester's basic information. The user may also mention what kind of request they have; report that as intent."
	case intake.PhaseClassifying:
		return "We are asking what kind of analytics help the user needs. Report their answer as intent."
	case intake.PhaseCollectingRequirements, intake.PhaseValidating:
		return fmt.Sprintf("We are collecting requirements for a %s.", req.Category.Label())
	default:
		return "The intake is finished; only report intent if the user asks for something new."
	}
}

// describeFields renders the expected fields as a bullet list.
func describeFields(fields []schema.Field) string {
	if len(fields) == 0 {
		return "(no fields expected in this step)"
	}
	var b strings.Builder
	for i, f := range fields {
		kind := "text"
		switch f.Kind {
		case schema.KindSet:
			kind = "list of strings"
		case schema.KindEnum:
			kind = "one of " + strings.Join(f.Options, "/")
		}
		required := "optional"
		if f.Required {
			required = "required"
		}
		fmt.Fprintf(&b, "- %s (%s, %s): %s", f.Name, kind, required, f.Question)
		if i < len(fields)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// buildUserPrompt is the per-turn instruction sent after the history.
func buildUserPrompt(req Request) string {
	return fmt.Sprintf("%s\n\nFields we can fill:\n%s\n\nReply with only a JSON object of the form:\n%s\n\nUser message:\n%s",
		phaseGuidance(req), describeFields(req.Expected), interpretFormat, strings.TrimSpace(req.Utterance))
}

// recentHistory returns at most historyLimit trailing messages.
func recentHistory(messages []intake.Message) []intake.Message {
	if len(messages) > historyLimit {
		return messages[len(messages)-historyLimit:]
	}
	return messages
}
