// Package catalog holds the indicator groups served by the feed. The built-in catalog
// is embedded YAML; a file on disk can replace it.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

//go:embed builtin.yaml
var builtin []byte

// Group is a named set of indicators fetched and cached together.
type Group struct {
	Name       string                 `json:"name" yaml:"name" validate:"required"`
	Title      string                 `json:"title" yaml:"title"`
	Indicators []indicator.Descriptor `json:"indicators" yaml:"indicators" validate:"required,min=1,dive"`
}

// Titles returns the indicator titles in declaration order.
func (g Group) Titles() []string {
	titles := make([]string, len(g.Indicators))
	for i, d := range g.Indicators {
		titles[i] = d.Title
	}
	return titles
}

type document struct {
	Groups []Group `yaml:"groups" validate:"required,min=1,dive"`
}

// Catalog is immutable once built.
type Catalog struct {
	groups []Group
	index  map[string]int
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Groups)
}

// New applies descriptor defaults and validates groups.
func New(groups []Group) (*Catalog, error) {
	groups = cloneGroups(groups)
	for gi := range groups {
		for di := range groups[gi].Indicators {
			if err := defaults.Set(&groups[gi].Indicators[di]); err != nil {
				return nil, fmt.Errorf("apply defaults %s/%d: %w", groups[gi].Name, di, err)
			}
		}
	}

	validate, err := newValidate()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(document{Groups: groups}); err != nil {
		return nil, describe(err)
	}

	c := &Catalog{groups: groups, index: make(map[string]int, len(groups))}
	for gi, g := range groups {
		if _, dup := c.index[g.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate group %q", g.Name)
		}
		c.index[g.Name] = gi
		ids := make(map[string]struct{}, len(g.Indicators))
		for _, d := range g.Indicators {
			if _, dup := ids[d.ID]; dup {
				return nil, fmt.Errorf("catalog: duplicate indicator %q in group %q", d.ID, g.Name)
			}
			ids[d.ID] = struct{}{}
			if !d.Range.Bounded() {
				return nil, fmt.Errorf("catalog: indicator %q needs range.max > range.min", d.ID)
			}
		}
	}
	return c, nil
}

// Names returns group names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.groups))
	for i, g := range c.groups {
		names[i] = g.Name
	}
	return names
}

// Groups returns a copy of every group.
func (c *Catalog) Groups() []Group {
	return cloneGroups(c.groups)
}

// Group looks up a group by name.
func (c *Catalog) Group(name string) (Group, bool) {
	i, ok := c.index[name]
	if !ok {
		return Group{}, false
	}
	return cloneGroups(c.groups[i : i+1])[0], true
}

func newValidate() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("realsource", func(fl validator.FieldLevel) bool {
		return !indicator.IsFallbackLabel(strings.TrimSpace(fl.Field().String()))
	})
	if err != nil {
		return nil, fmt.Errorf("register realsource: %w", err)
	}
	return v, nil
}

func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate catalog: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "realsource":
			msgs = append(msgs, fmt.Sprintf("%s %q is reserved for synthesized readings", fe.Namespace(), fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Namespace(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("validate catalog: %s", strings.Join(msgs, "; "))
}

func cloneGroups(src []Group) []Group {
	out := make([]Group, len(src))
	for i, g := range src {
		out[i] = g
		out[i].Indicators = make([]indicator.Descriptor, len(g.Indicators))
		for j, d := range g.Indicators {
			out[i].Indicators[j] = cloneDescriptor(d)
		}
	}
	return out
}

func cloneDescriptor(d indicator.Descriptor) indicator.Descriptor {
	cp := d
	cp.URLs = append([]string(nil), d.URLs...)
	cp.Hints.Keywords = append([]string(nil), d.Hints.Keywords...)
	cp.Hints.PreviousKeywords = append([]string(nil), d.Hints.PreviousKeywords...)
	cp.Hints.TableMarkers = append([]string(nil), d.Hints.TableMarkers...)
	cp.Hints.Tactics = append([]indicator.Tactic(nil), d.Hints.Tactics...)
	if d.Fallback != nil {
		v := *d.Fallback
		cp.Fallback = &v
	}
	return cp
}
