package file

import (
	"bytes"
	"strings"
	"testing"

	"tasktrack/pkg/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleItems() []domain.Item {
	return []domain.Item{
		{ID: 1, Kind: domain.KindTask, Name: "Write report", Status: domain.StatusNew, Description: "quarterly"},
		{ID: 2, Kind: domain.KindEpic, Name: "Move", Status: domain.StatusInProgress, Description: ""},
		{ID: 3, Kind: domain.KindSubtask, Name: "Pack", Status: domain.StatusDone, Description: "boxes", ParentID: 2},
	}
}

func TestEncodeItemsExactFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeItems(&buf, sampleItems()))
	want := "id,type,name,status,description,epic\n" +
		"1,TASK,Write report,NEW,quarterly,\n" +
		"2,EPIC,Move,IN_PROGRESS,,\n" +
		"3,SUBTASK,Pack,DONE,boxes,2\n"
	require.Equal(t, want, buf.String())
}

func TestEncodeHistoryHasNoHeader(t *testing.T) {
	var buf bytes.Buffer
	items := sampleItems()
	require.NoError(t, EncodeHistory(&buf, []domain.Item{items[2], items[0]}))
	require.Equal(t, "3,SUBTASK,Pack,DONE,boxes,2\n1,TASK,Write report,NEW,quarterly,\n", buf.String())

	ids, err := DecodeHistory(&buf)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1}, ids)
}

func TestItemsRoundTrip(t *testing.T) {
	items := sampleItems()
	items = append(items, domain.Item{ID: 9, Kind: domain.KindTask, Name: "quote \"this\", please", Status: domain.StatusNew, Description: "line1\nline2"})
	var buf bytes.Buffer
	require.NoError(t, EncodeItems(&buf, items))

	got, err := DecodeItems(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(items, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeItemsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"bad id":      "x,TASK,a,NEW,,\n",
		"bad kind":    "1,STORY,a,NEW,,\n",
		"bad status":  "1,TASK,a,BLOCKED,,\n",
		"bad parent":  "1,SUBTASK,a,NEW,,\n",
		"field count": "1,TASK,a\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeItems(strings.NewReader(input))
			require.Error(t, err)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	items, err := DecodeItems(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, items)
	ids, err := DecodeHistory(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestSequenceRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeSequence(&buf, 42))
	require.Equal(t, "42\n", buf.String())

	got, err := DecodeSequence(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(42), got)

	got, err = DecodeSequence(strings.NewReader(""))
	require.NoError(t, err)
	require.Zero(t, got)

	_, err = DecodeSequence(strings.NewReader("abc"))
	require.Error(t, err)
	_, err = DecodeSequence(strings.NewReader("-3"))
	require.Error(t, err)
}
