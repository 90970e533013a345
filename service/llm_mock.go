package service

import (
	"context"
	"fmt"
	"log"
)

// MockLLM returns canned content so the whole pipeline can run with no
// external model. JSON-mode calls get a valid three-scene storyboard.
type MockLLM struct{}

func NewMockLLM() *MockLLM { return &MockLLM{} }

func (m *MockLLM) Call(_ context.Context, _, userPrompt string, jsonMode bool, caller string) (string, error) {
	log.Printf("[LLM] [%s] mock response", caller)
	if jsonMode {
		return `{"scenes":[` +
			`{"dialogue":"Where were you last night?","visual_prompt":"dim interrogation room, two detectives","motion_prompt":"slow push in","sfx":"BANG"},` +
			`{"dialogue":"I was at the harbor.","visual_prompt":"nervous suspect under a single lamp","motion_prompt":"handheld shake","sfx":""},` +
			`{"dialogue":"","visual_prompt":"foggy harbor at dawn, empty pier","motion_prompt":"wide drone pan","sfx":"WHOOSH"}` +
			`]}`, nil
	}
	return fmt.Sprintf("MOCK CONTENT (%s): %.120s", caller, userPrompt), nil
}
