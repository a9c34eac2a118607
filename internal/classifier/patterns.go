package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Patterns holds the regular expressions behind the two predicates. Matching
// is done against lower-cased text, so patterns should be written in lower case.
type Patterns struct {
	Wake     []string `yaml:"wake"`
	Question []string `yaml:"question"`
}

const names = `(assistant|robot|computer|anu|ai|a\.i\.)`

const aux = `(\s+is|\s+are|\s+do|\s+does|\s+did|\s+will|\s+would|\s+could|\s+should|\s+can)?`

// DefaultPatterns returns the built-in wake and question pattern sets.
func DefaultPatterns() Patterns {
	return Patterns{
		Wake: []string{
			`hey ` + names,
			`okay ` + names,
			`^` + names,
			`hello ` + names,
			`okay (google|alexa|siri|cortana)`,
			`hey (google|alexa|siri|cortana)`,
			`^listen`,
			`^attention`,
			`wake up`,
			`are you there`,
		},
		Question: []string{
			`what(\s+is|\s+are|\s+do|\s+does|\s+did|\s+will|\s+would|\s+could|\s+should|\s+can|\s+'s)?\s+.*\?`,
			`how` + aux + `\s+.*\?`,
			`why` + aux + `\s+.*\?`,
			`when` + aux + `\s+.*\?`,
			`where` + aux + `\s+.*\?`,
			`who` + aux + `\s+.*\?`,
			`can you.*\?`,
			`could you.*\?`,
			`would you.*\?`,
			`should i.*\?`,
			`is it.*\?`,
			`are you.*\?`,
			`do you.*\?`,
			`will you.*\?`,
			`tell me about`,
			`explain to me`,
			`give me information about`,
			`what's your opinion on`,
			`i need help with`,
		},
	}
}

// LoadPatterns reads a YAML pattern file. A section left empty in the file
// keeps the default set for that predicate.
func LoadPatterns(path string) (Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("read patterns file: %w", err)
	}
	return ParsePatterns(data)
}

// ParsePatterns decodes YAML pattern data, falling back to defaults per section.
func ParsePatterns(data []byte) (Patterns, error) {
	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Patterns{}, fmt.Errorf("decode patterns: %w", err)
	}
	def := DefaultPatterns()
	if len(p.Wake) == 0 {
		p.Wake = def.Wake
	}
	if len(p.Question) == 0 {
		p.Question = def.Question
	}
	return p, nil
}

// Extend appends extra patterns to each set, skipping blanks and duplicates.
func (p Patterns) Extend(wake, question []string) Patterns {
	return Patterns{
		Wake:     appendUnique(p.Wake, wake),
		Question: appendUnique(p.Question, question),
	}
}

// SplitList splits a comma separated env value into trimmed, non-empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendUnique(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
