package types

import "time"

// ResourceKind identifies a remote resource family. It is used to pick the
// strategy table, to dispatch normalization, and as part of snapshot keys.
type ResourceKind string

const (
	KindChatHistory ResourceKind = "chat-history"
	KindReplicaList ResourceKind = "replica-list"
	KindTraining    ResourceKind = "training-entries"
)

func ParseResourceKind(s string) (ResourceKind, bool) {
	switch ResourceKind(s) {
	case KindChatHistory, KindReplicaList, KindTraining:
		return ResourceKind(s), true
	default:
		return "", false
	}
}

// Message is a single turn inside a chat history entry.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatHistoryEntry is the canonical shape for one remote conversation record,
// regardless of which response shape the remote produced it in.
type ChatHistoryEntry struct {
	ID        string    `json:"id"`
	ReplicaID string    `json:"replica_id,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt string    `json:"created_at"`
	Status    string    `json:"status,omitempty"`
}

// Replica is a configured AI persona on the remote platform.
type Replica struct {
	UUID               string   `json:"uuid"`
	Name               string   `json:"name"`
	Slug               string   `json:"slug,omitempty"`
	Type               string   `json:"type,omitempty"`
	Purpose            string   `json:"purpose,omitempty"`
	Greeting           string   `json:"greeting,omitempty"`
	SystemMessage      string   `json:"system_message,omitempty"`
	ModelName          string   `json:"model_name,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	OwnerID            string   `json:"owner_id,omitempty"`
	Private            bool     `json:"private"`
	CreatedAt          string   `json:"created_at,omitempty"`
}

// TrainingType is the ingestion method for a knowledge-base entry.
type TrainingType string

const (
	TrainingFileUpload TrainingType = "file_upload"
	TrainingURL        TrainingType = "url"
	TrainingHistory    TrainingType = "training_history"
	TrainingText       TrainingType = "text"
)

func ParseTrainingType(s string) (TrainingType, bool) {
	switch TrainingType(s) {
	case TrainingFileUpload, TrainingURL, TrainingHistory, TrainingText:
		return TrainingType(s), true
	default:
		return "", false
	}
}

// TrainingStatus is the remote processing state of a training entry.
type TrainingStatus string

const (
	StatusAwaitingUpload TrainingStatus = "AWAITING_UPLOAD"
	StatusSupabaseOnly   TrainingStatus = "SUPABASE_ONLY"
	StatusBlank          TrainingStatus = "BLANK"
	StatusProcessing     TrainingStatus = "PROCESSING"
	StatusReady          TrainingStatus = "READY"
	StatusSyncError      TrainingStatus = "SYNC_ERROR"
	StatusErrFileProcess TrainingStatus = "ERR_FILE_PROCESSING"
	StatusErrTextProcess TrainingStatus = "ERR_TEXT_PROCESSING"
	StatusErrTextToVec   TrainingStatus = "ERR_TEXT_TO_VECTOR"
)

// TrainingEntry is the canonical shape for one knowledge-base record.
type TrainingEntry struct {
	ID          string         `json:"id"`
	ReplicaID   string         `json:"replica_id,omitempty"`
	Type        TrainingType   `json:"type,omitempty"`
	Status      TrainingStatus `json:"status,omitempty"`
	RawText     string         `json:"raw_text,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

// CredentialBundle is a named set of remote API credentials. At most one
// bundle is active at a time; activating one deactivates the rest.
type CredentialBundle struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	APIKey         string    `json:"-"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id,omitempty"`
	ReplicaID      string    `json:"replica_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// KeyPreview returns a display-safe fragment of the bundle's API key.
// The full key must never appear in logs or responses.
func (b *CredentialBundle) KeyPreview() string {
	if len(b.APIKey) <= 6 {
		return "******"
	}
	return b.APIKey[:6] + "..."
}
