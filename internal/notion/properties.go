package notion

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// PropertyValue is a database property reduced to the shapes the agent
// understands. The concrete types below are the only implementations.
type PropertyValue interface {
	// Text renders the value as a single line, empty when there is nothing to show
	Text() string
	isPropertyValue()
}

// TitleValue is the page title property
type TitleValue struct{ Value string }

// RichTextValue is a free-text property
type RichTextValue struct{ Value string }

// NumberValue is a numeric property
type NumberValue struct{ Value float64 }

// SelectValue is a single-choice property; Name is empty when unset
type SelectValue struct{ Name string }

// MultiSelectValue holds the chosen option names in Notion's order
type MultiSelectValue struct{ Names []string }

// CheckboxValue is a boolean property
type CheckboxValue struct{ Checked bool }

// DateValue holds the start of a date property; Start is nil when unset
type DateValue struct{ Start *time.Time }

// URLValue is a link property
type URLValue struct{ URL string }

// UnsupportedValue marks a property type the agent does not read
type UnsupportedValue struct{ Type string }

func (TitleValue) isPropertyValue()       {}
func (RichTextValue) isPropertyValue()    {}
func (NumberValue) isPropertyValue()      {}
func (SelectValue) isPropertyValue()      {}
func (MultiSelectValue) isPropertyValue() {}
func (CheckboxValue) isPropertyValue()    {}
func (DateValue) isPropertyValue()        {}
func (URLValue) isPropertyValue()         {}
func (UnsupportedValue) isPropertyValue() {}

func (v TitleValue) Text() string    { return v.Value }
func (v RichTextValue) Text() string { return v.Value }
func (v NumberValue) Text() string   { return strconv.FormatFloat(v.Value, 'f', -1, 64) }
func (v SelectValue) Text() string   { return v.Name }
func (v MultiSelectValue) Text() string {
	return strings.Join(v.Names, ", ")
}
func (v CheckboxValue) Text() string { return strconv.FormatBool(v.Checked) }
func (v DateValue) Text() string {
	if v.Start == nil {
		return ""
	}
	return v.Start.Format("2006-01-02")
}
func (v URLValue) Text() string         { return v.URL }
func (v UnsupportedValue) Text() string { return "" }

// ConvertProperty maps a notionapi property onto a PropertyValue
func ConvertProperty(p notionapi.Property) PropertyValue {
	switch prop := p.(type) {
	case *notionapi.TitleProperty:
		return TitleValue{Value: plainText(prop.Title)}
	case *notionapi.RichTextProperty:
		return RichTextValue{Value: plainText(prop.RichText)}
	case *notionapi.NumberProperty:
		return NumberValue{Value: prop.Number}
	case *notionapi.SelectProperty:
		return SelectValue{Name: prop.Select.Name}
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(prop.MultiSelect))
		for _, opt := range prop.MultiSelect {
			names = append(names, opt.Name)
		}
		return MultiSelectValue{Names: names}
	case *notionapi.CheckboxProperty:
		return CheckboxValue{Checked: prop.Checkbox}
	case *notionapi.DateProperty:
		if prop.Date == nil || prop.Date.Start == nil {
			return DateValue{}
		}
		t := time.Time(*prop.Date.Start)
		return DateValue{Start: &t}
	case *notionapi.URLProperty:
		return URLValue{URL: prop.URL}
	case nil:
		return UnsupportedValue{Type: "null"}
	default:
		return UnsupportedValue{Type: fmt.Sprintf("%T", p)}
	}
}

// Entry is a database row with its properties converted
type Entry struct {
	ID         string
	Properties map[string]PropertyValue
}

// Text renders the entry as "Name: value" lines in property name order,
// skipping properties with nothing to show.
func (e Entry) Text() string {
	names := make([]string, 0, len(e.Properties))
	for name := range e.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		text := strings.TrimSpace(e.Properties[name].Text())
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", name, text)
	}
	return b.String()
}

func entryFromPage(page notionapi.Page) Entry {
	props := make(map[string]PropertyValue, len(page.Properties))
	for name, p := range page.Properties {
		props[name] = ConvertProperty(p)
	}
	return Entry{ID: string(page.ID), Properties: props}
}

func plainText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}
