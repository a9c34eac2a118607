// Package classifier decides whether a transcribed utterance should get a reply.
//
// Two independent predicates run over the lower-cased text: one looks for a
// wake phrase addressed to the assistant, the other for a question or an
// explicit request. A reply is warranted when either one matches.
package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	wake     []*regexp.Regexp
	question []*regexp.Regexp
}

// Decision is the outcome of classifying one utterance.
type Decision struct {
	Addressed bool
	Question  bool
	// Matched is the first pattern that fired, for logging.
	Matched string
}

// Respond reports whether the utterance warrants a reply.
func (d Decision) Respond() bool { return d.Addressed || d.Question }

// New compiles the pattern sets. Any invalid expression is an error.
func New(p Patterns) (*Classifier, error) {
	wake, err := compileAll(p.Wake)
	if err != nil {
		return nil, fmt.Errorf("wake patterns: %w", err)
	}
	question, err := compileAll(p.Question)
	if err != nil {
		return nil, fmt.Errorf("question patterns: %w", err)
	}
	return &Classifier{wake: wake, question: question}, nil
}

// NewDefault builds a classifier from DefaultPatterns.
func NewDefault() *Classifier {
	c, err := New(DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return c
}

// AddressedToAssistant reports whether text contains a wake phrase.
func (c *Classifier) AddressedToAssistant(text string) bool {
	return firstMatch(c.wake, strings.ToLower(text)) != ""
}

// RequiresResponse reports whether text is a question or an explicit request.
func (c *Classifier) RequiresResponse(text string) bool {
	return firstMatch(c.question, strings.ToLower(text)) != ""
}

// ShouldRespond is AddressedToAssistant || RequiresResponse.
func (c *Classifier) ShouldRespond(text string) bool {
	return c.Classify(text).Respond()
}

// Classify evaluates both predicates at once.
func (c *Classifier) Classify(text string) Decision {
	lower := strings.ToLower(text)
	wake := firstMatch(c.wake, lower)
	question := firstMatch(c.question, lower)

	d := Decision{Addressed: wake != "", Question: question != ""}
	if d.Addressed {
		d.Matched = wake
	} else {
		d.Matched = question
	}
	return d
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func firstMatch(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		if re.MatchString(text) {
			return re.String()
		}
	}
	return ""
}
