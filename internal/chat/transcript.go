package chat

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/yieldwise/internal/ai"
)

// Kind names the artifact a conversation hangs off.
type Kind string

const (
	KindPlan      Kind = "plan"
	KindDiagnosis Kind = "diagnosis"
)

type framing struct {
	label       string
	instruction string
}

var framings = map[Kind]framing{
	KindPlan: {
		label:       "Initial Farm Plan:",
		instruction: "As an expert agronomist, provide a detailed, helpful answer to the user's question about their farm plan.",
	},
	KindDiagnosis: {
		label:       "Initial Diagnosis Report:",
		instruction: "As a plant pathology expert, provide a detailed, helpful answer to the user's question about their plant diagnosis.",
	},
}

func (k Kind) Valid() bool {
	_, ok := framings[k]
	return ok
}

// Thread identifies one stored conversation and the artifact it discusses.
type Thread struct {
	Kind     Kind
	ParentID uint64
	Artifact string
}

// Encoding selects how a transcript is handed to the backend.
type Encoding string

const (
	// EncodingLinear sends the whole transcript as one user message.
	EncodingLinear Encoding = "linear"
	// EncodingStructured sends a system framing message plus one message per turn.
	EncodingStructured Encoding = "structured"
)

func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingLinear:
		return EncodingLinear, nil
	case EncodingStructured:
		return EncodingStructured, nil
	}
	return "", fmt.Errorf("unknown chat encoding %q", s)
}

// Transcript is the ordered context for one follow-up question.
type Transcript struct {
	Thread   Thread
	History  []Turn
	Question string
}

func (t Transcript) framing() framing {
	if f, ok := framings[t.Thread.Kind]; ok {
		return f
	}
	return framings[KindPlan]
}

// Text linearises the transcript:
//
//	{label}\n{artifact}\n\n
//	{Role}: {content}\n   (per prior turn, oldest first)
//	User: {question}\n\n{instruction}
func (t Transcript) Text() string {
	f := t.framing()
	var b strings.Builder
	b.WriteString(f.label)
	b.WriteString("\n")
	b.WriteString(t.Thread.Artifact)
	b.WriteString("\n\n")
	for _, turn := range t.History {
		b.WriteString(roleLabel(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(t.Question)
	b.WriteString("\n\n")
	b.WriteString(f.instruction)
	return b.String()
}

// Messages is the structured encoding of the same turn sequence.
func (t Transcript) Messages() []ai.Message {
	f := t.framing()
	out := make([]ai.Message, 0, len(t.History)+2)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: f.label + "\n" + t.Thread.Artifact})
	for _, turn := range t.History {
		role := ai.RoleUser
		if turn.Role == RoleAssistant {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: turn.Content})
	}
	out = append(out, ai.Message{Role: ai.RoleUser, Content: t.Question + "\n\n" + f.instruction})
	return out
}

func (t Transcript) Encode(enc Encoding) []ai.Message {
	if enc == EncodingStructured {
		return t.Messages()
	}
	return []ai.Message{{Role: ai.RoleUser, Content: t.Text()}}
}

func roleLabel(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
