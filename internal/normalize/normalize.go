// Package normalize maps the remote API's loosely-specified response shapes
// into canonical records. The remote returns different containers depending
// on endpoint family and the auth path taken: a {"history":[...]} object, an
// {"items":[...]} object, a bare JSON array, or a single object. Whatever the
// container, normalization must preserve record identity: the same logical
// payload yields the same id set regardless of shape.
package normalize

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

// maxPrefixBytes bounds the raw-body prefix carried by MalformedError.
const maxPrefixBytes = 256

// MalformedError reports a remote body that could not be parsed as JSON.
type MalformedError struct {
	Kind   types.ResourceKind
	Prefix string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed remote response for %s: %q", e.Kind, e.Prefix)
}

func malformed(kind types.ResourceKind, raw []byte) *MalformedError {
	prefix := string(raw)
	if len(prefix) > maxPrefixBytes {
		prefix = prefix[:maxPrefixBytes]
	}
	return &MalformedError{Kind: kind, Prefix: prefix}
}

// first returns the first present field among the given keys.
func first(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func syntheticID(prefix string, i int) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), i)
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ChatHistory normalizes a chat-history payload of any supported shape.
func ChatHistory(raw []byte) ([]types.ChatHistoryEntry, error) {
	if !gjson.ValidBytes(raw) {
		return nil, malformed(types.KindChatHistory, raw)
	}
	root := gjson.ParseBytes(raw)

	switch {
	case root.Get("history").IsArray():
		return chatEntries(root.Get("history").Array()), nil
	case root.Get("items").IsArray():
		// Older endpoint family: each item is a flat record with a single
		// content string. Synthesize a one-message conversation per item.
		var out []types.ChatHistoryEntry
		for i, item := range root.Get("items").Array() {
			id := first(item, "id", "uuid").String()
			if id == "" {
				id = syntheticID("hist", i)
			}
			createdAt := first(item, "created_at", "createdAt").String()
			if createdAt == "" {
				createdAt = nowTimestamp()
			}
			role := item.Get("role").String()
			if role == "" {
				role = "user"
			}
			out = append(out, types.ChatHistoryEntry{
				ID:        id,
				ReplicaID: first(item, "replica_id", "replicaId", "replica_uuid").String(),
				Messages: []types.Message{{
					Role:      role,
					Content:   item.Get("content").String(),
					Timestamp: createdAt,
				}},
				CreatedAt: createdAt,
				Status:    item.Get("status").String(),
			})
		}
		return out, nil
	case root.IsArray():
		return chatEntries(root.Array()), nil
	case root.IsObject():
		return chatEntries([]gjson.Result{root}), nil
	default:
		return nil, malformed(types.KindChatHistory, raw)
	}
}

func chatEntries(items []gjson.Result) []types.ChatHistoryEntry {
	var out []types.ChatHistoryEntry
	for i, item := range items {
		id := first(item, "id", "uuid").String()
		if id == "" {
			id = syntheticID("hist", i)
		}
		createdAt := first(item, "created_at", "createdAt").String()
		if createdAt == "" {
			createdAt = nowTimestamp()
		}

		messages := []types.Message{}
		for _, m := range item.Get("messages").Array() {
			messages = append(messages, types.Message{
				Role:      m.Get("role").String(),
				Content:   m.Get("content").String(),
				Timestamp: m.Get("timestamp").String(),
			})
		}

		out = append(out, types.ChatHistoryEntry{
			ID:        id,
			ReplicaID: first(item, "replica_id", "replicaId", "replica_uuid").String(),
			Messages:  messages,
			CreatedAt: createdAt,
			Status:    item.Get("status").String(),
		})
	}
	return out
}

// Replicas normalizes a replica-list payload of any supported shape.
func Replicas(raw []byte) ([]types.Replica, error) {
	if !gjson.ValidBytes(raw) {
		return nil, malformed(types.KindReplicaList, raw)
	}
	root := gjson.ParseBytes(raw)

	switch {
	case root.Get("items").IsArray():
		return replicaEntries(root.Get("items").Array()), nil
	case root.IsArray():
		return replicaEntries(root.Array()), nil
	case root.IsObject():
		return replicaEntries([]gjson.Result{root}), nil
	default:
		return nil, malformed(types.KindReplicaList, raw)
	}
}

func replicaEntries(items []gjson.Result) []types.Replica {
	var out []types.Replica
	for i, item := range items {
		uuid := first(item, "uuid", "id").String()
		if uuid == "" {
			uuid = syntheticID("replica", i)
		}

		var tags []string
		for _, t := range item.Get("tags").Array() {
			tags = append(tags, t.String())
		}
		var questions []string
		for _, q := range first(item, "suggested_questions", "suggestedQuestions").Array() {
			questions = append(questions, q.String())
		}

		out = append(out, types.Replica{
			UUID:               uuid,
			Name:               item.Get("name").String(),
			Slug:               item.Get("slug").String(),
			Type:               item.Get("type").String(),
			Purpose:            item.Get("purpose").String(),
			Greeting:           item.Get("greeting").String(),
			SystemMessage:      first(item, "system_message", "systemMessage", "llm.systemMessage").String(),
			ModelName:          first(item, "model_name", "modelName", "llm.model").String(),
			Tags:               tags,
			SuggestedQuestions: questions,
			OwnerID:            first(item, "owner_id", "ownerID", "ownerId").String(),
			Private:            item.Get("private").Bool(),
			CreatedAt:          first(item, "created_at", "createdAt").String(),
		})
	}
	return out
}

// Training normalizes a training-entries payload of any supported shape.
func Training(raw []byte) ([]types.TrainingEntry, error) {
	if !gjson.ValidBytes(raw) {
		return nil, malformed(types.KindTraining, raw)
	}
	root := gjson.ParseBytes(raw)

	switch {
	case root.Get("items").IsArray():
		return trainingEntries(root.Get("items").Array()), nil
	case root.IsArray():
		return trainingEntries(root.Array()), nil
	case root.IsObject():
		return trainingEntries([]gjson.Result{root}), nil
	default:
		return nil, malformed(types.KindTraining, raw)
	}
}

func trainingEntries(items []gjson.Result) []types.TrainingEntry {
	var out []types.TrainingEntry
	for i, item := range items {
		id := first(item, "id", "uuid").String()
		if id == "" {
			id = syntheticID("training", i)
		}
		out = append(out, types.TrainingEntry{
			ID:          id,
			ReplicaID:   first(item, "replica_id", "replicaId", "replica_uuid").String(),
			Type:        types.TrainingType(item.Get("type").String()),
			Status:      types.TrainingStatus(item.Get("status").String()),
			RawText:     first(item, "raw_text", "rawText").String(),
			Title:       item.Get("title").String(),
			Description: item.Get("description").String(),
			CreatedAt:   first(item, "created_at", "createdAt").String(),
			UpdatedAt:   first(item, "updated_at", "updatedAt").String(),
		})
	}
	return out
}
