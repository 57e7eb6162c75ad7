package storage

import (
	"reflect"
	"testing"
)

func TestUnionTagsDedupsPreservingOrder(t *testing.T) {
	got := unionTags([]string{"a", "b"}, []string{"b", "c"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSubtractTagsRemovesOnlyNamed(t *testing.T) {
	got := subtractTags([]string{"a", "b", "c"}, []string{"b"})
	want := []string{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeJSONRecursesIntoNestedObjects(t *testing.T) {
	original := []byte(`{"a":1,"b":{"nested":true,"keep":"yes"}}`)
	patch := []byte(`{"b":{"nested":false},"c":3}`)
	merged, err := mergeJSON(original, patch)
	if err != nil {
		t.Fatal(err)
	}
	if string(merged) != `{"a":1,"b":{"keep":"yes","nested":false},"c":3}` {
		t.Fatalf("unexpected merge result: %s", merged)
	}
}

func TestMergeJSONConcatenatesArraysElementWise(t *testing.T) {
	original := []byte(`{"tags":["a","b"]}`)
	patch := []byte(`{"tags":["c"]}`)
	merged, err := mergeJSON(original, patch)
	if err != nil {
		t.Fatal(err)
	}
	if string(merged) != `{"tags":["a","b","c"]}` {
		t.Fatalf("unexpected merge result: %s", merged)
	}
}

func TestMergeJSONScalarLeafIsLastWriteWins(t *testing.T) {
	original := []byte(`{"count":1}`)
	patch := []byte(`{"count":2}`)
	merged, err := mergeJSON(original, patch)
	if err != nil {
		t.Fatal(err)
	}
	if string(merged) != `{"count":2}` {
		t.Fatalf("unexpected merge result: %s", merged)
	}
}

func TestMergeJSONHandlesEmptyOriginal(t *testing.T) {
	merged, err := mergeJSON(nil, []byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(merged) != `{"a":1}` {
		t.Fatalf("unexpected merge result: %s", merged)
	}
}
