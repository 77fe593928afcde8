package provider

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func collect(t *testing.T, s Stream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		frag, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, frag)
	}
}

func TestBodyStream_OneByteReads(t *testing.T) {
	input := event("Par") + event("is") + event(" is") + event(" the capital of France.") + "data: [DONE]\n\n"
	body := &trackingBody{Reader: iotest.OneByteReader(strings.NewReader(input))}

	s := NewBodyStream(OpenAI, body, nil)
	got, err := collect(t, s)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
	want := []string{"Par", "is", " is", " the capital of France."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if body.closed != 1 {
		t.Errorf("Expected body closed once after completion, got %d", body.closed)
	}

	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after completion should keep returning io.EOF, got %v", err)
	}
	_ = s.Close()
	if body.closed != 1 {
		t.Errorf("Close after completion must not close body twice, got %d", body.closed)
	}
}

func TestBodyStream_EOFWithoutMarker(t *testing.T) {
	input := event("a") + `data: {"choices":[{"delta":{"content":"b"}}]}`
	s := NewBodyStream(GitHub, &trackingBody{Reader: strings.NewReader(input)}, nil)

	got, err := collect(t, s)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %q", got)
	}
}

func TestBodyStream_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(event("partial")), iotest.ErrReader(boom))
	s := NewBodyStream(OpenAI, &trackingBody{Reader: r}, nil)

	got, err := collect(t, s)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected read error, got %v", err)
	}
	if !reflect.DeepEqual(got, []string{"partial"}) {
		t.Errorf("Expected fragments before the error, got %q", got)
	}
}

func TestBodyStream_Close(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(event("a") + event("b"))}
	s := NewBodyStream(OpenAI, body, nil)

	frag, err := s.Next()
	if err != nil || frag != "a" {
		t.Fatalf("Expected first fragment a, got %q, %v", frag, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.Next(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed after Close, got %v", err)
	}
	_ = s.Close()
	if body.closed != 1 {
		t.Errorf("Expected body closed once, got %d", body.closed)
	}
}

func TestUpstreamError(t *testing.T) {
	err := error(&UpstreamError{Provider: OpenAI, StatusCode: 401, Body: "bad key"})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatal("Expected errors.As to find UpstreamError")
	}
	if upErr.StatusCode != 401 {
		t.Errorf("Expected status 401, got %d", upErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("Error message should carry status and body, got %q", err.Error())
	}
}
