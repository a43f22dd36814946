package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Partition(t *testing.T) {
	now := time.Now()
	objects := []ObjectInfo{
		{Key: "uploads/matched.mp3", LastModified: now},
		{Key: "uploads/blob-only.mp3", LastModified: now},
	}
	rows := []FileRow{
		{ID: 1, ObjectKey: "uploads/matched.mp3", HasRequest: true},
		{ID: 2, ObjectKey: "uploads/row-only.mp3", HasRequest: true},
	}

	rep := Classify(objects, rows)

	assert.Equal(t, []string{"uploads/matched.mp3"}, rep.Matched)
	require.Len(t, rep.TypeA, 1)
	assert.Equal(t, "uploads/blob-only.mp3", rep.TypeA[0].Key)
	require.Len(t, rep.TypeB, 1)
	assert.Equal(t, uint(2), rep.TypeB[0].ID)
	assert.Empty(t, rep.TypeC)
	require.Len(t, rep.Referenced, 1)
	assert.Equal(t, uint(1), rep.Referenced[0].ID)
}

func TestClassify_UnreferencedRowIsTypeC(t *testing.T) {
	objects := []ObjectInfo{{Key: "uploads/orphan.mp3"}}
	rows := []FileRow{{ID: 1, ObjectKey: "uploads/orphan.mp3"}}

	rep := Classify(objects, rows)

	require.Len(t, rep.TypeC, 1)
	assert.Equal(t, uint(1), rep.TypeC[0].ID)
	assert.Empty(t, rep.Referenced)
	assert.Empty(t, rep.TypeB)
}

func TestClassify_TranscriptRefProtectsRow(t *testing.T) {
	// A delivered transcript has no owning request but is referenced
	// through a transcript pointer. It must never classify as orphaned.
	objects := []ObjectInfo{{Key: "transcripts/final.hwp"}}
	rows := []FileRow{{ID: 1, ObjectKey: "transcripts/final.hwp", TranscriptRefs: 2}}

	rep := Classify(objects, rows)

	assert.Empty(t, rep.TypeC)
	require.Len(t, rep.Referenced, 1)
}

func TestClassify_EverythingConsistent(t *testing.T) {
	rep := Classify(nil, nil)
	assert.Empty(t, rep.Matched)
	assert.Empty(t, rep.TypeA)
	assert.Empty(t, rep.TypeB)
	assert.Empty(t, rep.TypeC)
	assert.Empty(t, rep.Referenced)
}

func TestEligibleTypeA_GraceWindow(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	rep := Report{TypeA: []ObjectInfo{
		{Key: "uploads/fresh.mp3", LastModified: now.Add(-time.Hour)},
		{Key: "uploads/stale.mp3", LastModified: now.Add(-7 * time.Hour)},
		{Key: "uploads/boundary.mp3", LastModified: now.Add(-6 * time.Hour)},
	}}

	eligible := rep.EligibleTypeA(now, 6*time.Hour)
	require.Len(t, eligible, 1)
	assert.Equal(t, "uploads/stale.mp3", eligible[0].Key)
}

func TestIsOrphan(t *testing.T) {
	assert.True(t, FileRow{}.IsOrphan())
	assert.False(t, FileRow{HasRequest: true}.IsOrphan())
	assert.False(t, FileRow{TranscriptRefs: 1}.IsOrphan())
	assert.False(t, FileRow{HasRequest: true, TranscriptRefs: 1}.IsOrphan())
}
