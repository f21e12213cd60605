// Package normalized defines the vendor-agnostic request/response/stream-event
// model that every wire dialect is translated to and from.
package normalized

import "encoding/json"

// Role identifies the speaker of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FinishReason is the closed set of reasons a choice stopped generating.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
)

// ToolChoiceMode selects how the model must use the supplied tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

// ToolChoice selects tool-use policy. Name is only set when Mode is
// ToolChoiceSpecific.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// MarshalJSON renders the untagged wire shape: a bare string for the
// generic modes, or {"name": "..."} for a specific tool.
func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Mode == ToolChoiceSpecific {
		return json.Marshal(struct {
			Name string `json:"name"`
		}{Name: t.Name})
	}
	if t.Mode == "" {
		return json.Marshal(string(ToolChoiceAuto))
	}
	return json.Marshal(string(t.Mode))
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		switch ToolChoiceMode(asString) {
		case ToolChoiceAuto, ToolChoiceRequired, ToolChoiceNone:
			t.Mode = ToolChoiceMode(asString)
		default:
			t.Mode = ToolChoiceAuto
		}
		return nil
	}

	var asObject struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return err
	}
	t.Mode = ToolChoiceSpecific
	t.Name = asObject.Name
	return nil
}

// ImageSourceKind distinguishes the two ways an image can be carried.
type ImageSourceKind string

const (
	ImageSourceURL    ImageSourceKind = "url"
	ImageSourceBase64 ImageSourceKind = "base64"
)

// ImageSource is a URL reference or inline base64-encoded image payload.
type ImageSource struct {
	Kind      ImageSourceKind
	URL       string
	Data      string
	MediaType string // required when Kind == ImageSourceBase64
}

// ContentPartKind discriminates the ContentPart union.
type ContentPartKind string

const (
	ContentPartText  ContentPartKind = "text"
	ContentPartImage ContentPartKind = "image"
)

// ContentPart is one element of a multi-part message body.
type ContentPart struct {
	Kind  ContentPartKind
	Text  string
	Image ImageSource
}

type wireContentPart struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Source    string `json:"source,omitempty"` // "url" or "base64", mirrors Kind
	URL       string `json:"url,omitempty"`
	Data      string `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

func (p ContentPart) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case ContentPartText:
		return json.Marshal(wireContentPart{Type: "text", Text: p.Text})
	case ContentPartImage:
		w := wireContentPart{Type: "image"}
		switch p.Image.Kind {
		case ImageSourceURL:
			w.Source = "url"
			w.URL = p.Image.URL
		case ImageSourceBase64:
			w.Source = "base64"
			w.Data = p.Image.Data
			w.MediaType = p.Image.MediaType
		}
		return json.Marshal(w)
	default:
		return json.Marshal(wireContentPart{Type: string(p.Kind)})
	}
}

func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var w wireContentPart
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "text":
		p.Kind = ContentPartText
		p.Text = w.Text
	case "image":
		p.Kind = ContentPartImage
		if w.URL != "" || w.Source == "url" {
			p.Image = ImageSource{Kind: ImageSourceURL, URL: w.URL}
		} else {
			p.Image = ImageSource{Kind: ImageSourceBase64, Data: w.Data, MediaType: w.MediaType}
		}
	default:
		p.Kind = ContentPartKind(w.Type)
	}
	return nil
}

// MessageContent is either plain text or an ordered sequence of parts.
// It marshals untagged: a bare JSON string, or an array of typed parts.
type MessageContent struct {
	Text  string
	Parts []ContentPart
	// IsParts distinguishes an explicit empty-parts array from plain text;
	// zero value (false, empty Text) renders as "".
	IsParts bool
}

func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts, IsParts: true}
}

// String concatenates all text-bearing content, used to test the
// round-trip/idempotence law that deltas reconstruct the full text.
func (c MessageContent) String() string {
	if !c.IsParts {
		return c.Text
	}
	var out string
	for _, p := range c.Parts {
		if p.Kind == ContentPartText {
			out += p.Text
		}
	}
	return out
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if !c.IsParts {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		c.Text = asString
		c.IsParts = false
		return nil
	}
	var asParts []ContentPart
	if err := json.Unmarshal(data, &asParts); err != nil {
		return err
	}
	c.Parts = asParts
	c.IsParts = true
	return nil
}

// ToolCall is a single invocation the assistant requested.
type ToolCall struct {
	ID            string
	Name          string
	Arguments     map[string]any
	RawArguments  string // undecoded JSON fragment, preserved for streaming reassembly
}

// ToolResult is a prior tool invocation's outcome, supplied back to the model.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one turn of the conversation.
type Message struct {
	Role        Role
	Content     MessageContent
	ToolCalls   []ToolCall   // present on assistant messages that invoked tools
	ToolResults []ToolResult // present on tool-role messages
	Name        string       // optional, e.g. a named tool/function identity
}

// ToolDefinition describes one tool, with JSON-Schema-typed parameters.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-Schema
}

// Request is the normalized, vendor-agnostic unit of work.
type Request struct {
	Model           string
	Messages        []Message
	Stream          bool
	System          string // optional system prompt, lifted out of Messages at ingress
	MaxOutputTokens *int
	Temperature     *float64
	TopP            *float64
	TopK            *int
	StopSequences   []string
	Tools           []ToolDefinition
	ToolChoice      *ToolChoice
	Metadata        map[string]any
}

// Validate enforces the invariants from spec.md §3 that do not depend on
// dialect-specific ranges (those are enforced at ingress, see dialect pkgs).
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return ErrEmptyMessages
	}

	toolCallIDs := make(map[string]bool)
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		default:
			return &UnknownRoleError{Role: string(m.Role), Index: i}
		}

		for _, tc := range m.ToolCalls {
			toolCallIDs[tc.ID] = true
		}

		if m.Role == RoleTool {
			if i == 0 {
				return &DanglingToolResultError{Index: i}
			}
			for _, tr := range m.ToolResults {
				if !toolCallIDs[tr.ToolCallID] {
					return &DanglingToolResultError{Index: i, ToolCallID: tr.ToolCallID}
				}
			}
		}

		if m.Content.IsParts {
			for _, p := range m.Content.Parts {
				if p.Kind == ContentPartImage && p.Image.Kind == ImageSourceBase64 && p.Image.MediaType == "" {
					return &MissingMediaTypeError{Index: i}
				}
			}
		}
	}

	return nil
}
