package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidContent(t *testing.T) {
	req := require.New(t)

	req.True(ValidContent("hello"))
	req.True(ValidContent("  hello  "))
	req.False(ValidContent(""))
	req.False(ValidContent("   "))
	req.False(ValidContent("\n\t "))
}

func TestConversation_OtherParticipant(t *testing.T) {
	req := require.New(t)
	conv := Conversation{Participants: []string{"alice", OperatorID}}

	req.Equal(OperatorID, conv.OtherParticipant("alice"))
	req.Equal("alice", conv.OtherParticipant(OperatorID))
}

func TestConversation_HasParticipant(t *testing.T) {
	req := require.New(t)
	conv := Conversation{Participants: []string{"alice", OperatorID}}

	req.True(conv.HasParticipant("alice"))
	req.True(conv.HasParticipant(OperatorID))
	req.False(conv.HasParticipant("mallory"))
}
