package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	sc := bufio.NewScanner(strings.NewReader("  hello world  \n"))

	got, err := GetSimpleText(sc, "Say something:", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
	if !strings.Contains(out.String(), "Say something:") {
		t.Fatalf("prompt not written: %q", out.String())
	}
}

func TestGetSimpleText_EOF(t *testing.T) {
	var out bytes.Buffer
	sc := bufio.NewScanner(strings.NewReader(""))

	_, err := GetSimpleText(sc, "prompt", &out)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestGetMultiline(t *testing.T) {
	var out bytes.Buffer
	sc := bufio.NewScanner(strings.NewReader("line one\nline two\n\nafter\n"))

	got, err := GetMultiline(sc, "Notes:", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "line one\nline two" {
		t.Fatalf("got %q", got)
	}
}

func TestGetMultiline_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	sc := bufio.NewScanner(strings.NewReader("\n"))

	got, err := GetMultiline(sc, "Notes:", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
