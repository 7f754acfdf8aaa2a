package ai

import (
	"context"
	"encoding/base64"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image is an inline attachment sent alongside a message to vision-capable models.
type Image struct {
	MIMEType string
	Data     []byte
}

func (img Image) base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

func (img Image) dataURI() string {
	return "data:" + img.MIMEType + ";base64," + img.base64()
}

type Message struct {
	Role    string
	Content string
	Images  []Image
}

// Provider is a text/vision generation backend. Implementations must be safe
// for concurrent use; they hold no per-conversation state.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Describer is implemented by providers that can report a human readable model name.
type Describer interface {
	Describe() string
}

// Describe returns the provider's model name, or "" if it does not say.
func Describe(p Provider) string {
	if d, ok := p.(Describer); ok {
		return d.Describe()
	}
	return ""
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
