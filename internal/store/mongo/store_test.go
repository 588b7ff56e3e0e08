package mongo

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestToDocument(t *testing.T) {
	raw := bson.M{
		"_id":   "doc-1",
		"title": "Growth Hacks",
		"slides": bson.A{
			bson.D{{Key: "rawText", Value: "Post daily"}},
		},
		"meta": bson.M{"views": int32(3)},
	}

	doc := toDocument("carousels", raw)

	if doc.ID() != "doc-1" {
		t.Errorf("id = %q", doc.ID())
	}
	if doc.Collection() != "carousels" {
		t.Errorf("collection = %q", doc.Collection())
	}
	if _, ok := doc.Fields()["_id"]; ok {
		t.Error("_id should be stripped from fields")
	}

	slides, ok := doc.Fields()["slides"].([]any)
	if !ok || len(slides) != 1 {
		t.Fatalf("slides not normalized to []any: %#v", doc.Fields()["slides"])
	}
	slide, ok := slides[0].(map[string]any)
	if !ok || slide["rawText"] != "Post daily" {
		t.Errorf("slide not normalized to map[string]any: %#v", slides[0])
	}

	want := map[string]any{"views": int32(3)}
	if !reflect.DeepEqual(doc.Fields()["meta"], want) {
		t.Errorf("meta = %#v, want %#v", doc.Fields()["meta"], want)
	}
}
