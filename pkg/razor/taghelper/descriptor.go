package taghelper

import (
	"slices"
	"strings"
)

// ElementCatchAll matches any tag name.
const ElementCatchAll = "*"

type NameComparison int

const (
	FullMatch NameComparison = iota
	PrefixMatch
)

type RequiredAttributeDescriptor struct {
	Name           string         `yaml:"name" json:"name"`
	NameComparison NameComparison `yaml:"nameComparison,omitempty" json:"nameComparison,omitempty"`
	Value          string         `yaml:"value,omitempty" json:"value,omitempty"`
}

func (r RequiredAttributeDescriptor) Matches(attributeName string) bool {
	switch r.NameComparison {
	case PrefixMatch:
		return len(attributeName) > len(r.Name) && strings.HasPrefix(strings.ToLower(attributeName), strings.ToLower(r.Name))
	default:
		return strings.EqualFold(r.Name, attributeName)
	}
}

type TagMatchingRuleDescriptor struct {
	TagName    string                        `yaml:"tagName" json:"tagName"`
	ParentTag  string                        `yaml:"parentTag,omitempty" json:"parentTag,omitempty"`
	Attributes []RequiredAttributeDescriptor `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

func (r TagMatchingRuleDescriptor) Equal(o TagMatchingRuleDescriptor) bool {
	return r.TagName == o.TagName && r.ParentTag == o.ParentTag && slices.Equal(r.Attributes, o.Attributes)
}

// Matches reports whether the rule applies to a tag with the given name, attributes and parent.
func (r TagMatchingRuleDescriptor) Matches(tagName string, attributeNames []string, parentTag string) bool {
	if r.TagName != ElementCatchAll && !strings.EqualFold(r.TagName, tagName) {
		return false
	}
	if r.ParentTag != "" && !strings.EqualFold(r.ParentTag, parentTag) {
		return false
	}
	for _, req := range r.Attributes {
		if !slices.ContainsFunc(attributeNames, req.Matches) {
			return false
		}
	}
	return true
}

type BoundAttributeDescriptor struct {
	Name          string `yaml:"name" json:"name"`
	PropertyName  string `yaml:"propertyName" json:"propertyName"`
	TypeName      string `yaml:"typeName" json:"typeName"`
	Documentation string `yaml:"documentation,omitempty" json:"documentation,omitempty"`
}

// IsStringProperty reports whether attribute values bind as literal markup rather than C#.
func (b BoundAttributeDescriptor) IsStringProperty() bool {
	switch b.TypeName {
	case "System.String", "string", "string?":
		return true
	}
	return false
}

func (b BoundAttributeDescriptor) DisplayName() string {
	return b.TypeName + " " + b.PropertyName
}

type TagHelperDescriptor struct {
	Name             string                      `yaml:"name" json:"name"`
	TypeName         string                      `yaml:"typeName" json:"typeName"`
	AssemblyName     string                      `yaml:"assembly" json:"assembly"`
	Documentation    string                      `yaml:"documentation,omitempty" json:"documentation,omitempty"`
	TagMatchingRules []TagMatchingRuleDescriptor `yaml:"rules" json:"rules"`
	BoundAttributes  []BoundAttributeDescriptor  `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

func (d *TagHelperDescriptor) Equal(o *TagHelperDescriptor) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil {
		return false
	}
	return d.Name == o.Name &&
		d.TypeName == o.TypeName &&
		d.AssemblyName == o.AssemblyName &&
		d.Documentation == o.Documentation &&
		slices.EqualFunc(d.TagMatchingRules, o.TagMatchingRules, TagMatchingRuleDescriptor.Equal) &&
		slices.Equal(d.BoundAttributes, o.BoundAttributes)
}

// Key identifies a descriptor across reloads.
func (d *TagHelperDescriptor) Key() string {
	return d.AssemblyName + "::" + d.TypeName
}

func (d *TagHelperDescriptor) BoundAttribute(name string) (*BoundAttributeDescriptor, bool) {
	for i := range d.BoundAttributes {
		if strings.EqualFold(d.BoundAttributes[i].Name, name) {
			return &d.BoundAttributes[i], true
		}
	}
	return nil, false
}
