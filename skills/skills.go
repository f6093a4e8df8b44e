// Package skills implements the read-only skill catalog (spec §4.1): a
// directory of markdown files, each with an optional YAML front-matter
// block, scanned once at startup. Descriptions() renders the cheap,
// always-injected layer; Load(name) returns the expensive, on-demand
// full body. The front-matter shape (`---`-delimited YAML block + body,
// with name/description/tags fields) follows the metadata record used by
// the pack's devclaw/goclaw skill installers, generalized down to the
// leaner read-only record spec §3 names — this catalog has no runtime
// Tools()/Execute() surface, only lookup.
package skills

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is one catalog entry.
type Skill struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Body        string   `yaml:"-"`
}

// Catalog is the read-only set loaded from a directory tree.
type Catalog struct {
	skills map[string]Skill
	order  []string
}

// Load scans every .md file under root, parsing an optional front-matter
// block. Files without a name in front-matter fall back to their base
// filename (without extension).
func Load(root string) (*Catalog, error) {
	c := &Catalog{skills: map[string]Skill{}}
	return c, loadInto(c, root)
}

func loadInto(c *Catalog, root string) error {
	entries, err := walkMarkdown(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		sk := parse(string(data))
		if sk.Name == "" {
			base := filepath.Base(path)
			sk.Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if _, exists := c.skills[sk.Name]; !exists {
			c.order = append(c.order, sk.Name)
		}
		c.skills[sk.Name] = sk
	}
	sort.Strings(c.order)
	return nil
}

func walkMarkdown(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".md") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func parse(content string) Skill {
	const delim = "---"
	var sk Skill

	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, delim) {
		sk.Body = content
		return sk
	}

	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		sk.Body = content
		return sk
	}

	frontMatter := rest[:idx]
	body := rest[idx+len(delim)+1:]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(frontMatter), &sk); err != nil {
		sk = Skill{Body: content}
		return sk
	}
	sk.Body = body
	return sk
}

// Descriptions renders "name: description [tags]" for every skill, the
// cheap layer injected into the system prompt.
func (c *Catalog) Descriptions() string {
	if len(c.order) == 0 {
		return "No skills available."
	}
	var sb strings.Builder
	for _, name := range c.order {
		sk := c.skills[name]
		if len(sk.Tags) > 0 {
			fmt.Fprintf(&sb, "%s: %s %v\n", sk.Name, sk.Description, sk.Tags)
		} else {
			fmt.Fprintf(&sb, "%s: %s\n", sk.Name, sk.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Load returns the full body of the named skill wrapped in a <skill>
// envelope, the expensive on-demand layer returned as a tool_result.
// Unknown names return an error string enumerating available skills.
func (c *Catalog) Load(name string) (string, error) {
	sk, ok := c.skills[name]
	if !ok {
		names := strings.Join(c.order, ", ")
		return "", fmt.Errorf("unknown skill %q, available: %s", name, names)
	}
	return fmt.Sprintf("<skill name=%q>\n%s\n</skill>", sk.Name, sk.Body), nil
}
