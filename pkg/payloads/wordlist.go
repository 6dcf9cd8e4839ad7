/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: wordlist.go
Description: External payload wordlists. Plain text files hold one template per line
(blank lines and #-comments skipped). YAML catalogs additionally carry per-template
capability metadata.
*/

package payloads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kleascm/xssentinel/pkg/core"
	"gopkg.in/yaml.v3"
)

// yamlCatalog is the on-disk shape of a YAML template catalog
type yamlCatalog struct {
	Templates []yamlTemplate `yaml:"templates"`
}

type yamlTemplate struct {
	Body           string   `yaml:"body"`
	RequiresInline *bool    `yaml:"requires_inline"`
	RequiresData   bool     `yaml:"requires_data"`
	RequiresBlob   bool     `yaml:"requires_blob"`
	ContextTags    []string `yaml:"context_tags"`
}

// LoadWordlist reads one external wordlist. Errors wrap core.ErrWordlistLoad.
func LoadWordlist(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrWordlistLoad, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLCatalog(path, data)
	default:
		return parseLines(path, string(data)), nil
	}
}

// LoadWordlists reads every path in order, skipping files that fail.
// The returned errors describe the skipped files.
func LoadWordlists(paths []string) ([]Template, []error) {
	var (
		templates []Template
		errs      []error
	)
	for _, path := range paths {
		loaded, err := LoadWordlist(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		templates = append(templates, loaded...)
	}
	return templates, errs
}

func parseLines(source, raw string) []Template {
	var out []Template
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, Template{Body: line, RequiresInline: true, Source: source})
	}
	return out
}

func parseYAMLCatalog(source string, data []byte) ([]Template, error) {
	var catalog yamlCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrWordlistLoad, source, err)
	}
	out := make([]Template, 0, len(catalog.Templates))
	for _, t := range catalog.Templates {
		body := strings.TrimSpace(t.Body)
		if body == "" {
			continue
		}
		requiresInline := true
		if t.RequiresInline != nil {
			requiresInline = *t.RequiresInline
		}
		out = append(out, Template{
			Body:           body,
			RequiresInline: requiresInline,
			RequiresData:   t.RequiresData,
			RequiresBlob:   t.RequiresBlob,
			ContextTags:    t.ContextTags,
			Source:         source,
		})
	}
	return out, nil
}
