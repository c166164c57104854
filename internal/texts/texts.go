// Package texts loads localized instruction and UI strings from markdown documents.
package texts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document names a kind of text document.
type Document string

// Text documents.
const (
	Instructions Document = "instructions"
	UI           Document = "ui"
)

// Well-known section names.
const (
	SectionThankYou         = "Thank You"
	SectionContinue         = "Continue Button"
	SectionExperimentConfig = "Experiment Config"
	SectionParticipantInfo  = "Participant Info"
	SectionName             = "Name"
	SectionAge              = "Age"
	SectionGender           = "Gender"
	SectionWordCount        = "Word Count"
	SectionLanguage         = "Language"
)

type docKey struct {
	lang string
	doc  Document
}

// Provider resolves (language, document, section) to text.
// Sections are parsed once at load time.
type Provider struct {
	docs map[docKey]map[string]string
}

// NewProvider returns an empty provider.
func NewProvider() *Provider {
	return &Provider{docs: map[docKey]map[string]string{}}
}

// Load parses every <lang>_instructions.md and <lang>_ui.md file in dir.
// A missing directory yields an empty provider.
func Load(dir string) (*Provider, error) {
	p := NewProvider()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to read texts directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lang, doc, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		if err := p.loadFile(filepath.Join(dir, entry.Name()), lang, doc); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Provider) loadFile(path, lang string, doc Document) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only text file.
			_ = cerr
		}
	}()
	if err := p.Add(lang, doc, file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Add parses a markdown document and registers its sections.
func (p *Provider) Add(lang string, doc Document, r io.Reader) error {
	sections, err := parseSections(r)
	if err != nil {
		return err
	}
	p.docs[docKey{lang: lang, doc: doc}] = sections
	return nil
}

// Section returns the body of a section, or "" when it is missing.
func (p *Provider) Section(lang string, doc Document, name string) string {
	if p == nil {
		return ""
	}
	sections, ok := p.docs[docKey{lang: lang, doc: doc}]
	if !ok {
		return ""
	}
	if body, ok := sections[name]; ok {
		return body
	}
	for title, body := range sections {
		if strings.EqualFold(title, name) {
			return body
		}
	}
	return ""
}

// Sections resolves several sections of one document in order.
func (p *Provider) Sections(lang string, doc Document, names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = p.Section(lang, doc, name)
	}
	return out
}

// Languages lists languages that have an instructions document.
func (p *Provider) Languages() []string {
	if p == nil {
		return nil
	}
	var langs []string
	for key := range p.docs {
		if key.doc == Instructions {
			langs = append(langs, key.lang)
		}
	}
	sort.Strings(langs)
	return langs
}

func parseFileName(name string) (string, Document, bool) {
	if !strings.HasSuffix(name, ".md") {
		return "", "", false
	}
	base := strings.TrimSuffix(name, ".md")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", "", false
	}
	lang := base[:idx]
	switch Document(base[idx+1:]) {
	case Instructions:
		return lang, Instructions, true
	case UI:
		return lang, UI, true
	default:
		return "", "", false
	}
}

// parseSections splits a document on "##" headings.
// Text before the first heading is dropped.
func parseSections(r io.Reader) (map[string]string, error) {
	sections := map[string]string{}
	var title string
	var body []string
	inSection := false
	flush := func() {
		if !inSection {
			return
		}
		if _, exists := sections[title]; !exists {
			sections[title] = strings.TrimSpace(strings.Join(body, "\n"))
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "##") {
			flush()
			title = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			body = body[:0]
			inSection = true
			continue
		}
		if inSection {
			body = append(body, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return sections, nil
}
