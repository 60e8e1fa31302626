package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchParticipants(t *testing.T) {
	m := &Match{IntentAID: "ia", IntentBID: "ib", User1ID: "u1", User2ID: "u2"}

	assert.True(t, m.HasUser("u1"))
	assert.True(t, m.HasUser("u2"))
	assert.False(t, m.HasUser("u3"))

	assert.Equal(t, "u2", m.OtherUserID("u1"))
	assert.Equal(t, "u1", m.OtherUserID("u2"))
	assert.Equal(t, "ia", m.IntentOf("u1"))
	assert.Equal(t, "ib", m.IntentOf("u2"))
}

func TestPairKey_IsOrderIndependent(t *testing.T) {
	lo1, hi1 := PairKey("b", "a")
	lo2, hi2 := PairKey("a", "b")
	assert.Equal(t, lo1, lo2)
	assert.Equal(t, hi1, hi2)
	assert.Equal(t, "a", lo1)
}

func TestDealRoomAccess_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&DealRoomAccess{}).Expired(now))
	assert.True(t, (&DealRoomAccess{ExpiresAt: &past}).Expired(now))
	assert.True(t, (&DealRoomAccess{ExpiresAt: &now}).Expired(now))
	assert.False(t, (&DealRoomAccess{ExpiresAt: &future}).Expired(now))
}

func TestProfileDisplayName(t *testing.T) {
	assert.Equal(t, "Ada (Gulf Trading)", (&Profile{Name: "Ada", Company: "Gulf Trading"}).DisplayName())
	assert.Equal(t, "Gulf Trading", (&Profile{Company: "Gulf Trading"}).DisplayName())
	assert.Equal(t, "Party", (*Profile)(nil).DisplayName())
}

func TestIntentPatch_TextChanged(t *testing.T) {
	title := "new"
	status := IntentPaused
	assert.True(t, IntentPatch{Title: &title}.TextChanged())
	assert.False(t, IntentPatch{Status: &status}.TextChanged())
}
