package dedup_test

import (
	"testing"
	"time"

	"github.com/nvoronin/periscope/internal/dedup"
	"github.com/nvoronin/periscope/internal/models"
	"github.com/stretchr/testify/assert"
)

var testTime = time.Date(2026, 1, 15, 10, 30, 45, 0, time.UTC)

func attachment(name, contentType, url string) models.Attachment {
	return models.Attachment{Name: name, ContentType: contentType, URL: url}
}

func TestSignatureDeterministic(t *testing.T) {
	atts := []models.Attachment{attachment("a.png", "image/png", "https://files/a.png")}

	s1 := dedup.Signature(models.RoleUser, "hello", testTime, atts)
	s2 := dedup.Signature(models.RoleUser, "hello", testTime, atts)
	assert.Equal(t, s1, s2)
}

func TestSignatureAttachmentOrderIndependent(t *testing.T) {
	a := attachment("a.png", "image/png", "https://files/a.png")
	b := attachment("b.pdf", "application/pdf", "https://files/b.pdf")

	s1 := dedup.Signature(models.RoleUser, "hello", testTime, []models.Attachment{a, b})
	s2 := dedup.Signature(models.RoleUser, "hello", testTime, []models.Attachment{b, a})
	assert.Equal(t, s1, s2, "reordering attachments must not change the signature")
}

func TestSignatureSensitiveToAttachmentFields(t *testing.T) {
	base := attachment("a.png", "image/png", "https://files/a.png")

	mutations := map[string]models.Attachment{
		"name":         attachment("other.png", "image/png", "https://files/a.png"),
		"content type": attachment("a.png", "image/jpeg", "https://files/a.png"),
		"url":          attachment("a.png", "image/png", "https://files/other.png"),
	}

	orig := dedup.Signature(models.RoleUser, "hello", testTime, []models.Attachment{base})
	for field, mutated := range mutations {
		t.Run(field, func(t *testing.T) {
			changed := dedup.Signature(models.RoleUser, "hello", testTime, []models.Attachment{mutated})
			assert.NotEqual(t, orig, changed, "changing attachment %s must change the signature", field)
		})
	}
}

func TestSignatureTimestampBucket(t *testing.T) {
	// Same minute bucket: equal signatures despite different seconds.
	sameMinute := dedup.Signature(models.RoleUser, "hi", testTime.Add(10*time.Second), nil)
	assert.Equal(t, dedup.Signature(models.RoleUser, "hi", testTime, nil), sameMinute)

	// Different minute: different signature.
	nextMinute := dedup.Signature(models.RoleUser, "hi", testTime.Add(time.Minute), nil)
	assert.NotEqual(t, dedup.Signature(models.RoleUser, "hi", testTime, nil), nextMinute)
}

func TestSignatureRoleAndContent(t *testing.T) {
	user := dedup.Signature(models.RoleUser, "hi", testTime, nil)
	assistant := dedup.Signature(models.RoleAssistant, "hi", testTime, nil)
	assert.NotEqual(t, user, assistant)

	other := dedup.Signature(models.RoleUser, "hi there", testTime, nil)
	assert.NotEqual(t, user, other)
}

func TestIsDuplicateByID(t *testing.T) {
	recent := []models.Message{{ID: "msg-1", Role: models.RoleUser, Content: "old", CreatedAt: testTime.Add(-time.Hour)}}

	msg := models.NewMessage{MessageID: "msg-1", Role: models.RoleUser, Content: "completely different"}
	assert.True(t, dedup.IsDuplicate(msg, recent))
}

func TestIsDuplicateBySignature(t *testing.T) {
	recent := []models.Message{{ID: "msg-1", Role: models.RoleUser, Content: "hello", CreatedAt: testTime}}

	// No client id assigned: the signature must still catch the race.
	msg := models.NewMessage{Role: models.RoleUser, Content: "hello", CreatedAt: testTime.Add(5 * time.Second)}
	assert.True(t, dedup.IsDuplicate(msg, recent))
}

func TestIsDuplicateFresh(t *testing.T) {
	recent := []models.Message{{ID: "msg-1", Role: models.RoleUser, Content: "hello", CreatedAt: testTime}}

	msg := models.NewMessage{MessageID: "msg-2", Role: models.RoleUser, Content: "something new", CreatedAt: testTime}
	assert.False(t, dedup.IsDuplicate(msg, recent))
}
