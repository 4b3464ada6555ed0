package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		sample   string
		expected rune
	}{
		{"username,message", ','},
		{"username;message", ';'},
		{"username\tmessage", '\t'},
		{"username|message", '|'},
		{"usernamemessage", ','},
		{"", ','},
	}

	for _, test := range tests {
		if got := detectDelimiter(test.sample); got != test.expected {
			t.Errorf("detectDelimiter(%q) = %q, expected %q", test.sample, got, test.expected)
		}
	}
}

func TestNormalizeCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Candidate
	}{
		{
			name:  "plain comma",
			input: "username,message\nalice,hi there\nbob,yo\n",
			expected: []Candidate{
				{Username: "alice", Message: "hi there"},
				{Username: "bob", Message: "yo"},
			},
		},
		{
			name:  "semicolon delimiter",
			input: "username;message\nalice;hi\n",
			expected: []Candidate{
				{Username: "alice", Message: "hi"},
			},
		},
		{
			name:  "swapped columns by header",
			input: "message,user\nhello friend,alice\n",
			expected: []Candidate{
				{Username: "alice", Message: "hello friend"},
			},
		},
		{
			name:  "quoted message with commas",
			input: "username,message\nalice,\"hi, how are you?\"\n",
			expected: []Candidate{
				{Username: "alice", Message: "hi, how are you?"},
			},
		},
		{
			name:  "drops empty and short rows",
			input: "username,message\nalice,hi\n,missing user\nbob,\nshortrow\ncarol,ok\n",
			expected: []Candidate{
				{Username: "alice", Message: "hi"},
				{Username: "carol", Message: "ok"},
			},
		},
		{
			name:  "byte order mark",
			input: "\uFEFFusername,message\nalice,hi\n",
			expected: []Candidate{
				{Username: "alice", Message: "hi"},
			},
		},
		{
			name:  "whitespace trimmed",
			input: "username,message\n  alice  ,  hi  \n",
			expected: []Candidate{
				{Username: "alice", Message: "hi"},
			},
		},
	}

	for _, test := range tests {
		got, err := NormalizeCSV(strings.NewReader(test.input))
		if err != nil {
			t.Errorf("%s: NormalizeCSV failed: %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(got, test.expected) {
			t.Errorf("%s: NormalizeCSV = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestNormalizeCSVEmpty(t *testing.T) {
	if _, err := NormalizeCSV(strings.NewReader("")); err == nil {
		t.Error("empty input should fail")
	}
	if _, err := NormalizeCSV(strings.NewReader("   \n  ")); err == nil {
		t.Error("blank input should fail")
	}
}

func TestWriteCandidatesCSV(t *testing.T) {
	var buf bytes.Buffer
	candidates := []Candidate{
		{Username: "alice", Message: "hi, you"},
		{Username: "", Message: "dropped"},
		{Username: "bob", Message: "yo"},
	}

	if err := WriteCandidatesCSV(&buf, candidates); err != nil {
		t.Fatalf("WriteCandidatesCSV failed: %v", err)
	}

	// Round trip through the normalizer keeps the kept rows intact.
	parsed, err := NormalizeCSV(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("round trip parse failed: %v", err)
	}

	expected := []Candidate{
		{Username: "alice", Message: "hi, you"},
		{Username: "bob", Message: "yo"},
	}
	if !reflect.DeepEqual(parsed, expected) {
		t.Errorf("round trip = %v, expected %v", parsed, expected)
	}

	if !strings.HasPrefix(buf.String(), "username,message\n") {
		t.Errorf("export missing canonical header: %q", buf.String())
	}
}
