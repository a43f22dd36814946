package reconciler

import (
	"time"
)

// ObjectInfo is one object-store entry as seen in a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// FileRow is the reconciler's projection of a File record: just enough
// to decide whether anything still references it.
type FileRow struct {
	ID             uint
	ObjectKey      string
	OriginalName   string
	HasRequest     bool
	TranscriptRefs int64
	CreatedAt      time.Time
}

// IsOrphan reports whether nothing references the row: no owning
// request and no request pointing at it as its transcript.
func (r FileRow) IsOrphan() bool {
	return !r.HasRequest && r.TranscriptRefs == 0
}

// Report is a classified snapshot of both stores. Every object key
// falls into exactly one of {Matched, TypeA}; every file row into
// exactly one of {Referenced, TypeB, TypeC}.
type Report struct {
	// Matched object keys have a File row.
	Matched []string
	// TypeA objects exist only in the object store.
	TypeA []ObjectInfo
	// Referenced rows exist in both stores and are reachable from a
	// request.
	Referenced []FileRow
	// TypeB rows have no backing object.
	TypeB []FileRow
	// TypeC rows exist in both stores but nothing references them.
	// Delivered transcripts are reachable through transcript refs and
	// never land here.
	TypeC []FileRow
}

// Classify cross-references an object-store listing against the File
// table. Pure: acts on the given snapshot only.
func Classify(objects []ObjectInfo, rows []FileRow) Report {
	byKey := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		byKey[r.ObjectKey] = struct{}{}
	}

	var rep Report
	for _, obj := range objects {
		if _, ok := byKey[obj.Key]; ok {
			rep.Matched = append(rep.Matched, obj.Key)
		} else {
			rep.TypeA = append(rep.TypeA, obj)
		}
	}

	inStore := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		inStore[obj.Key] = struct{}{}
	}
	for _, row := range rows {
		if _, ok := inStore[row.ObjectKey]; !ok {
			rep.TypeB = append(rep.TypeB, row)
		} else if row.IsOrphan() {
			rep.TypeC = append(rep.TypeC, row)
		} else {
			rep.Referenced = append(rep.Referenced, row)
		}
	}
	return rep
}

// EligibleTypeA filters blob-only orphans down to those older than the
// grace window, so an in-flight upload that has not been committed to
// the database yet is never raced.
func (r Report) EligibleTypeA(now time.Time, grace time.Duration) []ObjectInfo {
	var out []ObjectInfo
	for _, obj := range r.TypeA {
		if now.Sub(obj.LastModified) > grace {
			out = append(out, obj)
		}
	}
	return out
}
