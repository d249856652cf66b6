package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFlatten(t *testing.T) {
	tests := []struct {
		name    string
		history Conversation
		prompt  string
		want    []Message
	}{
		{
			name:    "empty history appends prompt",
			history: nil,
			prompt:  "hi",
			want:    []Message{{Role: RoleUser, Content: "hi"}},
		},
		{
			name:    "pending user turn is not duplicated",
			history: Conversation{{User: "hi", Assistant: strPtr("hello")}, {User: "bye"}},
			prompt:  "bye",
			want: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "hello"},
				{Role: RoleUser, Content: "bye"},
			},
		},
		{
			name:    "answered history gets prompt appended",
			history: Conversation{{User: "hi", Assistant: strPtr("hello")}},
			prompt:  "again",
			want: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "hello"},
				{Role: RoleUser, Content: "again"},
			},
		},
		{
			name:    "empty assistant slot is skipped",
			history: Conversation{{User: "hi", Assistant: strPtr("")}},
			prompt:  "x",
			want:    []Message{{Role: RoleUser, Content: "hi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Flatten(tt.history, tt.prompt))
		})
	}
}

func TestConversationClone(t *testing.T) {
	c := Conversation{{User: "a", Assistant: strPtr("b")}, {User: "c"}}
	cp := c.Clone()
	require.Len(t, cp, 2)

	*cp[0].Assistant = "changed"
	assert.Equal(t, "b", *c[0].Assistant)
	assert.False(t, cp[1].Answered())
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	assert.NoError(t, Params{Temperature: 1, TopP: 1, MaxLength: 20}.Validate())
	assert.NoError(t, Params{Temperature: 0.5, TopP: 0.01, MaxLength: 2040}.Validate())

	bad := []Params{
		{Temperature: 0, TopP: 0.9, MaxLength: 100},
		{Temperature: 1.1, TopP: 0.9, MaxLength: 100},
		{Temperature: 0.5, TopP: 0, MaxLength: 100},
		{Temperature: 0.5, TopP: 0.9, MaxLength: 19},
		{Temperature: 0.5, TopP: 0.9, MaxLength: 2041},
	}
	for _, p := range bad {
		assert.ErrorIs(t, p.Validate(), ErrParamOutOfRange, "%+v", p)
	}
}

func TestNewCredential(t *testing.T) {
	assert.True(t, NewCredential("hf_abc").Valid)
	assert.True(t, NewCredential("  hf_abc ").Valid)
	assert.Equal(t, "hf_abc", NewCredential("  hf_abc ").Token)
	assert.False(t, NewCredential("sk-abc").Valid)
	assert.False(t, NewCredential("").Valid)
}

func TestResultFailed(t *testing.T) {
	assert.False(t, Ok("x").Failed())
	assert.False(t, Result{Kind: KindNoop}.Failed())
	assert.True(t, Fail(KindInference, "Error", "boom").Failed())
	assert.Equal(t, "model_not_found", KindModelNotFound.String())
}
