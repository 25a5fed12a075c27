// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "context"

// StaticClient returns canned responses in order. It is the stub backend
// used by tests and by local runs without an API key.
type StaticClient struct {
	Responses []string
	Err       error

	calls int
}

// Generate implements the Client interface.
func (s *StaticClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", nil
	}
	resp := s.Responses[s.calls%len(s.Responses)]
	s.calls++
	return resp, nil
}

// Calls returns how many times Generate was invoked.
func (s *StaticClient) Calls() int {
	return s.calls
}
