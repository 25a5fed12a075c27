// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for the text-generation
// collaborator. Implementations must respect ctx deadlines: every call the
// pipeline makes is bounded by a timeout, and callers fall back to
// deterministic defaults when the collaborator is slow or unavailable.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
