package workshop

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		kind       Kind
		collection string
		direct     ID
	}{
		{name: "blank", in: "   ", kind: KindBlank},
		{name: "bare id", in: "12345678", kind: KindDirect, direct: "12345678"},
		{name: "ten digits", in: " 1234567890 ", kind: KindDirect, direct: "1234567890"},
		{name: "seven digits", in: "1234567", kind: KindInvalid},
		{name: "eleven digits", in: "12345678901", kind: KindInvalid},
		{name: "text", in: "notanid", kind: KindInvalid},
		{
			name:   "item url without query id",
			in:     "see 3141592653 on the workshop",
			kind:   KindDirect,
			direct: "3141592653",
		},
		{
			name:       "collection url",
			in:         "https://steamcommunity.com/sharedfiles/filedetails/?id=2718281828",
			kind:       KindCollection,
			collection: "2718281828",
			direct:     "2718281828",
		},
		{
			name:       "short collection id has no fallback",
			in:         "https://steamcommunity.com/sharedfiles/filedetails/?id=555",
			kind:       KindCollection,
			collection: "555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			if got.Kind != tt.kind {
				t.Fatalf("Classify(%q).Kind = %v, want %v", tt.in, got.Kind, tt.kind)
			}
			if got.CollectionID != tt.collection {
				t.Errorf("CollectionID = %q, want %q", got.CollectionID, tt.collection)
			}
			if got.DirectID != tt.direct {
				t.Errorf("DirectID = %q, want %q", got.DirectID, tt.direct)
			}
		})
	}
}

func TestDedupKeepsFirstOccurrence(t *testing.T) {
	got := Dedup([]ID{"3", "1", "3", "2", "1"})
	want := []ID{"3", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("Dedup() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Dedup() = %v, want %v", got, want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("a\r\nb\nc")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("SplitLines() = %q", got)
	}
}
