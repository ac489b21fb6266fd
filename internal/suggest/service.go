package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"jobscout/internal/cache"
)

// promptTextLimit caps how much combined description text goes into the user
// prompt. Beyond this the marginal signal is not worth the token cost.
const promptTextLimit = 12000

const systemPrompt = "You are an expert career advisor who analyzes complete job descriptions " +
	"to generate realistic, targeted portfolio project recommendations."

// ModelClient is the single request/response contract this service needs
// from the hosted model. Satisfied by Client; tests substitute stubs.
type ModelClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Suggester generates portfolio project suggestions, consulting the
// suggestion cache before invoking the model.
type Suggester struct {
	client ModelClient
	cache  *cache.SuggestionCache
}

// NewSuggester constructs a Suggester.
func NewSuggester(client ModelClient, suggestionCache *cache.SuggestionCache) *Suggester {
	return &Suggester{client: client, cache: suggestionCache}
}

// Suggest returns project suggestions for the combined description text.
// Identical (title, country, leading text) requests within 24 hours are
// served from cache without an external call.
func (s *Suggester) Suggest(ctx context.Context, combinedText, jobTitle, country string) (string, error) {
	key := cache.Fingerprint(jobTitle, country, combinedText)
	if cached, ok := s.cache.Lookup(key); ok {
		log.Info().Str("job_title", jobTitle).Msg("Using cached AI suggestions")
		return cached, nil
	}

	suggestions, err := s.client.Complete(ctx, systemPrompt, buildPrompt(jobTitle, country, combinedText))
	if err != nil {
		return "", err
	}

	s.cache.Store(key, suggestions)
	return suggestions, nil
}

func buildPrompt(jobTitle, country, combinedText string) string {
	if len(combinedText) > promptTextLimit {
		combinedText = combinedText[:promptTextLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert career and AI assistant. Your task is to read FULL job descriptions for roles like %q and suggest 3 to 5 specific, realistic portfolio projects someone can build to strengthen their application.

ANALYSIS CONTEXT:
- Focus on %s market requirements
- Analyzed comprehensive job descriptions

You should:
- Analyze the complete job requirements, not just summaries
- Identify the most common technical skills, tools, and responsibilities
- Recommend projects that directly address these requirements
- Provide detailed project descriptions with step-by-step guidance
- Frame each project with a real-world problem it solves
- Focus on what a beginner to intermediate candidate can realistically complete
- Suggest specific deliverables (dashboard, notebook, blog post, PDF report, GitHub README)
- Ensure projects reflect real-world value expected in these roles
- Include detailed project structure with sources and links
- Suggest walkthrough tutorials available on YouTube
- Provide clear success criteria and expected outcomes
- List ideal tech stack for each project
- Include optional stretch goals for advanced learners
- Explain evaluation criteria (what makes each project impactful)
- Describe commercial potential, MVP value, or unique market differentiation
- Suggest professional presentation strategies for interviews and LinkedIn

Here are the FULL job descriptions to analyze:
%s`, jobTitle, country, combinedText)

	return strings.TrimSpace(b.String())
}
