package entity

import (
	"fmt"
	"strings"
)

// VariantRule describes how one marketing variant is captured and routed
type VariantRule struct {
	Name             string
	SkipBranchReview bool
	MaxSides         int
}

// VariantCatalog is the closed set of marketing variants known to the system
type VariantCatalog struct {
	rules  []VariantRule
	byName map[string]VariantRule
}

// DefaultVariantRules returns the product line as shipped
func DefaultVariantRules() []VariantRule {
	return []VariantRule{
		{Name: VariantDigitaleSaeule, SkipBranchReview: true, MaxSides: 3},
		{Name: VariantRoadsideScreen, MaxSides: 2},
		{Name: VariantCityScreen, MaxSides: 2},
		{Name: VariantMegaVision, MaxSides: 2},
		{Name: VariantSuperMotion, MaxSides: 2},
	}
}

// NewVariantCatalog validates the rules and indexes them by name
func NewVariantCatalog(rules []VariantRule) (*VariantCatalog, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("variant catalog is empty")
	}

	c := &VariantCatalog{
		rules:  make([]VariantRule, 0, len(rules)),
		byName: make(map[string]VariantRule, len(rules)),
	}
	for _, r := range rules {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fmt.Errorf("variant name is required")
		}
		if _, dup := c.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate variant: %s", r.Name)
		}
		if r.MaxSides < 1 || r.MaxSides > 3 {
			return nil, fmt.Errorf("variant %s: max_sides must be between 1 and 3", r.Name)
		}
		c.rules = append(c.rules, r)
		c.byName[r.Name] = r
	}
	return c, nil
}

// DefaultVariantCatalog returns the catalog built from DefaultVariantRules
func DefaultVariantCatalog() *VariantCatalog {
	c, err := NewVariantCatalog(DefaultVariantRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the rule for a variant name
func (c *VariantCatalog) Lookup(name string) (VariantRule, bool) {
	r, ok := c.byName[name]
	return r, ok
}

// Names returns the variant names in catalog order
func (c *VariantCatalog) Names() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// SkipsBranchReview reports whether approval at acquisition-lead review goes
// straight to permitting for this variant
func (c *VariantCatalog) SkipsBranchReview(variant string) bool {
	return c.byName[variant].SkipBranchReview
}
