package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMapTrims(t *testing.T) {
	input := map[string]string{
		" color ":  " розовый ",
		"stems":    " 15 ",
		"wrapping": " ",
		" ":        "ignored",
		"":         "ignored",
	}

	expected := map[string]string{
		"color":    "розовый",
		"stems":    "15",
		"wrapping": "",
	}

	actual := NormalizeStringMap(input)
	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("expected %#v got %#v", expected, actual)
	}
}

func TestNormalizeStringMapEmptyInput(t *testing.T) {
	if NormalizeStringMap(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
	if NormalizeStringMap(map[string]string{}) != nil {
		t.Fatal("expected nil for empty map")
	}
	if NormalizeStringMap(map[string]string{" ": "x"}) != nil {
		t.Fatal("expected nil when every key is blank")
	}
}
