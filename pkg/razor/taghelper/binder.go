package taghelper

import (
	"strings"
)

// Binding is the result of matching one element against the registered tag helpers.
type Binding struct {
	TagName     string
	ParentTag   string
	Descriptors []*TagHelperDescriptor
}

// BoundAttribute finds the first descriptor that exposes attribute name.
func (b *Binding) BoundAttribute(name string) (*TagHelperDescriptor, *BoundAttributeDescriptor, bool) {
	if b == nil {
		return nil, nil, false
	}
	for _, d := range b.Descriptors {
		if attr, ok := d.BoundAttribute(name); ok {
			return d, attr, true
		}
	}
	return nil, nil, false
}

// Binder answers which tag helpers apply to a tag. It is immutable and safe for concurrent use.
type Binder struct {
	prefix      string
	descriptors []*TagHelperDescriptor
}

func NewBinder(descriptors []*TagHelperDescriptor, tagPrefix string) *Binder {
	return &Binder{prefix: tagPrefix, descriptors: descriptors}
}

func (b *Binder) Descriptors() []*TagHelperDescriptor {
	if b == nil {
		return nil
	}
	return b.descriptors
}

// Bind returns nil when nothing matches. Tags starting with '!' opt out of tag helper processing.
func (b *Binder) Bind(tagName string, attributeNames []string, parentTag string) *Binding {
	if b == nil || len(b.descriptors) == 0 || tagName == "" || strings.HasPrefix(tagName, "!") {
		return nil
	}

	name := tagName
	if b.prefix != "" {
		if !strings.HasPrefix(strings.ToLower(tagName), strings.ToLower(b.prefix)) {
			return nil
		}
		name = tagName[len(b.prefix):]
	}

	var matched []*TagHelperDescriptor
	for _, d := range b.descriptors {
		for _, rule := range d.TagMatchingRules {
			if rule.Matches(name, attributeNames, parentTag) {
				matched = append(matched, d)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}
	return &Binding{TagName: tagName, ParentTag: parentTag, Descriptors: matched}
}

// TagHelpersForElement lists descriptors whose rules target the tag name, ignoring attribute requirements.
func (b *Binder) TagHelpersForElement(tagName string, parentTag string) []*TagHelperDescriptor {
	if b == nil {
		return nil
	}
	var out []*TagHelperDescriptor
	for _, d := range b.descriptors {
		for _, rule := range d.TagMatchingRules {
			if rule.TagName == ElementCatchAll {
				continue
			}
			if strings.EqualFold(rule.TagName, strings.TrimPrefix(tagName, b.prefix)) &&
				(rule.ParentTag == "" || strings.EqualFold(rule.ParentTag, parentTag)) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
