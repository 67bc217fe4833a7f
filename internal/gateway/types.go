package gateway

import "context"

// EveryoneTarget addresses the workspace-wide implicit role in
// visibility overwrites.
const EveryoneTarget = "everyone"

// VisibilityRules controls what a principal or role may do in a channel.
type VisibilityRules struct {
	View bool `json:"view"`
	Post bool `json:"post"`
}

// VisibilityOverwrite grants or denies rules for one principal or role.
type VisibilityOverwrite struct {
	TargetID string          `json:"target_id"`
	Rules    VisibilityRules `json:"rules"`
}

// CreateChannelInput describes a channel to provision. Channels are
// deny-by-default: only the listed overwrites can see them.
type CreateChannelInput struct {
	WorkspaceID   string                `json:"workspace_id"`
	Name          string                `json:"name"`
	ParentGroupID string                `json:"parent_group_id,omitempty"`
	Overwrites    []VisibilityOverwrite `json:"overwrites"`
}

// Channel is the provisioner's handle for a created channel.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ControlStyle hints at how an interactive control is rendered.
// Rendering itself is the platform's concern.
type ControlStyle string

const (
	ControlStylePrimary ControlStyle = "primary"
	ControlStyleDanger  ControlStyle = "danger"
	ControlStyleNeutral ControlStyle = "neutral"
)

// Control is one interactive affordance attached to a message.
type Control struct {
	ActionID string       `json:"action_id"`
	Label    string       `json:"label"`
	Style    ControlStyle `json:"style,omitempty"`
}

// Message is a structured notification: text plus optional controls.
type Message struct {
	Text     string    `json:"text"`
	Controls []Control `json:"controls,omitempty"`
}

// ChannelProvisioner creates and tears down ticket channels. The
// platform, not the record store, is the source of truth for channel
// existence.
type ChannelProvisioner interface {
	CreateChannel(ctx context.Context, input CreateChannelInput) (*Channel, error)
	RenameChannel(ctx context.Context, channelID, name string) error
	SetVisibility(ctx context.Context, channelID, targetID string, rules VisibilityRules) error
	DeleteChannel(ctx context.Context, channelID string) error
	ChannelExists(ctx context.Context, channelID string) (bool, error)
}

// Notifier delivers structured messages. Delivery can fail
// independently of any state change and is never a rollback trigger.
type Notifier interface {
	Send(ctx context.Context, channelID string, msg Message) error
	DirectMessage(ctx context.Context, principalID string, msg Message) error
}
