package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemValidate(t *testing.T) {
	valid := Item{Kind: KindTask, Name: "write docs", Status: StatusNew}
	require.NoError(t, valid.Validate())

	cases := map[string]Item{
		"blank name":        {Kind: KindTask, Name: "  ", Status: StatusNew},
		"unknown kind":      {Kind: "STORY", Name: "x", Status: StatusNew},
		"unknown status":    {Kind: KindTask, Name: "x", Status: "BLOCKED"},
		"subtask no parent": {Kind: KindSubtask, Name: "x", Status: StatusNew},
		"task with parent":  {Kind: KindTask, Name: "x", Status: StatusNew, ParentID: 3},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			err := item.Validate()
			require.Error(t, err)
			assert.True(t, IsInvalid(err), "expected invalid, got %v", err)
		})
	}
}

func TestItemCloneCopiesChildIDs(t *testing.T) {
	epic := Item{ID: 1, Kind: KindEpic, Name: "e", Status: StatusNew, ChildIDs: []int64{2, 3}}
	cp := epic.Clone()
	cp.ChildIDs[0] = 99
	assert.Equal(t, int64(2), epic.ChildIDs[0])
}

func TestParseKindAndStatus(t *testing.T) {
	k, err := ParseKind("subtask")
	require.NoError(t, err)
	assert.Equal(t, KindSubtask, k)
	_, err = ParseKind("bug")
	assert.True(t, IsInvalid(err))

	st, err := ParseStatus(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)
	_, err = ParseStatus("closed")
	assert.True(t, IsInvalid(err))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(1))
	assert.True(t, IsInvalid(ValidateID(0)))
	assert.True(t, IsInvalid(ValidateID(-4)))
}

func TestErrorClasses(t *testing.T) {
	nf := NotFoundError{Kind: KindEpic, ID: 7}
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.Equal(t, "EPIC 7 not found", nf.Error())

	cause := errors.New("connection closed")
	wrapped := NewStorageError("delete", cause)
	assert.True(t, IsStorageFailure(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, IsNotFound(wrapped))

	// already classified errors pass through untouched
	assert.Equal(t, error(nf), NewStorageError("get", nf))
	assert.Nil(t, NewStorageError("noop", nil))
}
