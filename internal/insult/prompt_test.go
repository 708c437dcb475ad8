package insult

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/eleven-am/overlord/internal/conversation"
	"github.com/eleven-am/overlord/internal/vision"
)

func TestBuildPrompt_Layout(t *testing.T) {
	turns := []conversation.Turn{
		{Message: "first", Image: vision.Frame{Data: []byte("f1"), MIMEType: vision.MIMETypeJPEG}},
		{Message: "second", Image: vision.Frame{Data: []byte("f2"), MIMEType: vision.MIMETypeJPEG}},
	}
	frame := vision.Frame{Data: []byte("new"), MIMEType: vision.MIMETypeJPEG}

	msgs := BuildPrompt("be mean", turns, frame)
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}

	wantRoles := []Role{RoleSystem, RoleUser, RoleAssistant, RoleUser, RoleAssistant, RoleUser}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d: expected role %s, got %s", i, wantRoles[i], m.Role)
		}
	}

	if msgs[0].Text != "be mean" {
		t.Errorf("unexpected system text %q", msgs[0].Text)
	}
	if msgs[1].Parts[0].ImageURL.URL != "data:image/jpeg;base64,ZjE=" {
		t.Errorf("unexpected first image url %s", msgs[1].Parts[0].ImageURL.URL)
	}
	if msgs[2].Text != "first" || msgs[4].Text != "second" {
		t.Errorf("assistant turns out of order: %q, %q", msgs[2].Text, msgs[4].Text)
	}
	if msgs[5].Parts[0].ImageURL.URL != frame.DataURI() {
		t.Errorf("last message should carry the new frame")
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	turns := []conversation.Turn{{Message: "a", Image: vision.Frame{Data: []byte("x")}}}
	frame := vision.Frame{Data: []byte("y")}

	first := BuildPrompt(DefaultSystemPrompt, turns, frame)
	second := BuildPrompt(DefaultSystemPrompt, turns, frame)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different prompts")
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Error("identical inputs produced different wire bodies")
	}
}

func TestMessage_MarshalJSON(t *testing.T) {
	text, _ := json.Marshal(Message{Role: RoleAssistant, Text: "hi"})
	if string(text) != `{"role":"assistant","content":"hi"}` {
		t.Errorf("unexpected text message json %s", text)
	}

	img, _ := json.Marshal(imageMessage(vision.Frame{Data: []byte("abc")}))
	want := `{"role":"user","content":[{"type":"image_url","image_url":{"url":"data:image/jpeg;base64,YWJj"}}]}`
	if string(img) != want {
		t.Errorf("unexpected image message json\n got %s\nwant %s", img, want)
	}
}
