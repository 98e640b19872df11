package catalog

import (
	"encoding/json"
	"testing"
)

func TestSortedClips_AscendingSeqPos(t *testing.T) {
	p := PlaylistProject{Clips: []Clip{
		{FileName: "c.mp4", SeqPos: 3},
		{FileName: "a.mp4", SeqPos: 1},
		{FileName: "b.mp4", SeqPos: 2},
	}}

	got := p.SortedClips()
	want := []string{"a.mp4", "b.mp4", "c.mp4"}
	for i, name := range want {
		if got[i].FileName != name {
			t.Fatalf("SortedClips()[%d] = %s, want %s", i, got[i].FileName, name)
		}
	}
	if p.Clips[0].FileName != "c.mp4" {
		t.Error("SortedClips() mutated the project")
	}
}

func TestSortedClips_TiesKeepInputOrder(t *testing.T) {
	p := PlaylistProject{Clips: []Clip{
		{FileName: "second", SeqPos: 5},
		{FileName: "first", SeqPos: 1},
		{FileName: "third", SeqPos: 5},
		{FileName: "fourth", SeqPos: 5},
	}}

	got := p.SortedClips()
	want := []string{"first", "second", "third", "fourth"}
	for i, name := range want {
		if got[i].FileName != name {
			t.Fatalf("SortedClips()[%d] = %s, want %s", i, got[i].FileName, name)
		}
	}
}

func TestUserCatalog_Project(t *testing.T) {
	u := UserCatalog{Projects: []PlaylistProject{{ProjectID: "p1"}, {ProjectID: "p2"}}}
	if p := u.Project("p2"); p == nil || p.ProjectID != "p2" {
		t.Fatalf("Project(p2) = %+v", p)
	}
	if p := u.Project("p3"); p != nil {
		t.Fatalf("Project(p3) = %+v, want nil", p)
	}
}

func TestRenderedOutput_JSONNullableFields(t *testing.T) {
	data, err := json.Marshal(RenderedOutput{FileID: "f1"})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"duration", "frameRate", "resolution"} {
		v, ok := m[key]
		if !ok || v != nil {
			t.Errorf("%s = %v (present %v), want null", key, v, ok)
		}
	}
	if m["fileId"] != "f1" {
		t.Errorf("fileId = %v", m["fileId"])
	}
}
