// Package dedup recognizes two message objects as the same logical send.
//
// The UI can trigger a save through independent paths (direct submit,
// recovered pending-message replay, completion callback) and any two of
// them can race. Signature matching catches races where no client id was
// assigned; id matching catches retries of the same logical send.
package dedup

import (
	"sort"
	"strings"
	"time"

	"github.com/nvoronin/periscope/internal/models"
)

// signatureBucket is the timestamp truncation applied when building
// signatures. One minute tolerates clock skew and re-serialization drift
// between the client copy and the persisted copy of a message.
const signatureBucket = time.Minute

// Signature returns a deterministic string identifying a message by role,
// content, minute-bucketed creation time and attachment list. The
// attachment portion is order-independent: reordering attachments yields
// the same signature, changing any attachment's name, content type or URL
// does not.
func Signature(role, content string, createdAt time.Time, attachments []models.Attachment) string {
	summaries := make([]string, len(attachments))
	for i, att := range attachments {
		summaries[i] = att.Name + "|" + att.ContentType + "|" + att.URL
	}
	sort.Strings(summaries)

	bucket := createdAt.UTC().Truncate(signatureBucket).Format("2006-01-02T15:04")
	return role + "|" + content + "|" + bucket + "|" + strings.Join(summaries, ",")
}

// NewMessageSignature builds the signature of an outbound message. A zero
// CreatedAt is bucketed as now, matching the timestamp the save path will
// assign.
func NewMessageSignature(msg models.NewMessage) string {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return Signature(msg.Role, msg.Content, createdAt, msg.Attachments)
}

// MessageSignature builds the signature of a persisted message.
func MessageSignature(msg models.Message) string {
	return Signature(msg.Role, msg.Content, msg.CreatedAt, msg.Attachments)
}

// IsDuplicate reports whether msg represents the same logical send as one
// of the already-loaded messages: a client id match or a signature match.
// Purely in-memory; never a server round trip.
func IsDuplicate(msg models.NewMessage, recent []models.Message) bool {
	if msg.MessageID != "" {
		for _, m := range recent {
			if m.ID == msg.MessageID {
				return true
			}
		}
	}

	sig := NewMessageSignature(msg)
	for _, m := range recent {
		if MessageSignature(m) == sig {
			return true
		}
	}
	return false
}
