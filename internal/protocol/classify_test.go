package protocol

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Class
	}{
		{"symbol locations", `{"command":"SYMBOL_LOCATIONS","seq":1,"arguments":{"prefix":"fo"}}`, ClassLocal},
		{"organize imports", `{"command":"ORGANIZE_IMPORTS","seq":2,"arguments":{"filename":"a.ts"}}`, ClassLocal},
		{"reload", `{"command":"reload","seq":3,"arguments":{"file":"a.ts"}}`, ClassWiretap},
		{"unknown command", `{"command":"completions","seq":4}`, ClassPassthrough},
		{"zero seq is valid", `{"command":"open","seq":0}`, ClassPassthrough},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, class, err := Classify([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if class != tc.want {
				t.Errorf("class = %v, want %v", class, tc.want)
			}
			if cmd.Command == "" {
				t.Error("command name lost during classification")
			}
		})
	}
}

func TestClassify_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing command", `{"seq":1}`},
		{"missing seq", `{"command":"reload"}`},
		{"not an object", `[1,2,3]`},
		{"not JSON", `garbage`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Classify([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected classification error")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("err = %T, want *FormatError", err)
			}
		})
	}
}
