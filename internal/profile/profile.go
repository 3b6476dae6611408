package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResumeVariant maps a named resume file to the posting keywords it targets.
type ResumeVariant struct {
	Name     string   `yaml:"name"`
	Path     string   `yaml:"path"`
	Keywords []string `yaml:"keywords"`
}

// Profile is the candidate's own data: identity fields for form filling,
// resume variants, and canned answers for common free-text questions.
type Profile struct {
	FullName  string `yaml:"full_name"`
	Email     string `yaml:"email"`
	Phone     string `yaml:"phone"`
	Location  string `yaml:"location"`
	LinkedIn  string `yaml:"linkedin"`
	Website   string `yaml:"website"`
	Summary   string `yaml:"summary"`
	WorkAuth  string `yaml:"work_authorization"`
	NoticeRaw string `yaml:"notice_period"`

	Resumes []ResumeVariant   `yaml:"resumes"`
	Answers map[string]string `yaml:"answers"`
}

// Load reads and validates the profile file.
func Load(path string) (Profile, error) {
	var p Profile
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, err
	}
	if p.FullName == "" || p.Email == "" {
		return p, fmt.Errorf("profile %s: full_name and email are required", path)
	}
	if len(p.Resumes) == 0 {
		return p, fmt.Errorf("profile %s: at least one resume variant is required", path)
	}
	return p, nil
}

// SelectResume maps posting text onto a variant by keyword hits, falling
// back to the first variant when nothing matches.
func (p Profile) SelectResume(title, description string) ResumeVariant {
	text := strings.ToLower(title + " " + description)

	best := p.Resumes[0]
	bestHits := 0
	for _, v := range p.Resumes {
		hits := 0
		for _, kw := range v.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw == "" {
				continue
			}
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = v, hits
		}
	}
	return best
}

// Answer returns the canned answer whose key appears in the question text.
func (p Profile) Answer(question string) (string, bool) {
	q := strings.ToLower(question)
	for key, ans := range p.Answers {
		if strings.Contains(q, strings.ToLower(key)) {
			return ans, true
		}
	}
	return "", false
}
