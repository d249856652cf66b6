package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"slmchat/internal/domain"
)

func TestEstimatingCounter(t *testing.T) {
	c := Estimating()
	assert.False(t, c.Exact())
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 2, c.Count("abcdefgh"))
	assert.Equal(t, 1, c.Count("día"))

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: "abcd"},
		{Role: domain.RoleUser, Content: "abcdefgh"},
	}
	assert.Equal(t, 3, c.CountMessages(msgs))
}
