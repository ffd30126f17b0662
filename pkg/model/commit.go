package model

import "strings"

// Identity of a commit author or committer
type Identity struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

func (i Identity) String() string {
	if i.Email == "" {
		return i.Name
	}
	return i.Name + " <" + i.Email + ">"
}

// ParseIdentity parses an identity of the form "Name <email>"
func ParseIdentity(s string) Identity {
	s = strings.TrimSpace(s)
	open := strings.LastIndex(s, "<")
	if open < 0 || !strings.HasSuffix(s, ">") {
		return Identity{Name: s}
	}
	return Identity{
		Name:  strings.TrimSpace(s[:open]),
		Email: strings.TrimSpace(s[open+1 : len(s)-1]),
	}
}

// Commit in the repository history
type Commit struct {
	ID      string   `json:"id" yaml:"id"`
	Parents []string `json:"parents,omitempty" yaml:"parents,omitempty"`
	Author  Identity `json:"author" yaml:"author"`
	Message string   `json:"message" yaml:"message"`
	Branch  string   `json:"branch,omitempty" yaml:"branch,omitempty"`

	// Files touched by this commit, relative to the repository root
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// Subject is the first line of the commit message
func (c Commit) Subject() string {
	return Subject(c.Message)
}

// ShortID abbreviates the commit hash
func (c Commit) ShortID() string {
	return ShortID(c.ID)
}

// Subject is the first line of a commit message
func Subject(message string) string {
	message = strings.TrimSpace(message)
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimSpace(message[:i])
	}
	return message
}

// ShortID abbreviates a commit hash to 7 characters
func ShortID(id string) string {
	const short = 7
	if len(id) > short {
		return id[:short]
	}
	return id
}

// Trailers extracts the git trailers ("Key: value" lines) from the last paragraph of a commit message.
func Trailers(message string) map[string]string {
	paragraphs := strings.Split(strings.TrimSpace(strings.ReplaceAll(message, "\r\n", "\n")), "\n\n")
	if len(paragraphs) < 2 {
		return nil
	}
	trailers := make(map[string]string)
	for _, line := range strings.Split(paragraphs[len(paragraphs)-1], "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil
		}
		trailers[key] = strings.TrimSpace(value)
	}
	return trailers
}
