package apply

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldKind classifies what a form control is asking for.
type FieldKind string

const (
	FieldFullName    FieldKind = "full_name"
	FieldFirstName   FieldKind = "first_name"
	FieldLastName    FieldKind = "last_name"
	FieldEmail       FieldKind = "email"
	FieldPhone       FieldKind = "phone"
	FieldLocation    FieldKind = "location"
	FieldLinkedIn    FieldKind = "linkedin"
	FieldWebsite     FieldKind = "website"
	FieldCoverLetter FieldKind = "cover_letter"
	FieldResume      FieldKind = "resume"
	FieldVerifyCode  FieldKind = "verify_code"
	FieldQuestion    FieldKind = "question"
)

// Field is one resolved form control.
type Field struct {
	Kind     FieldKind
	Selector string // CSS selector usable by the driver
	Label    string // human text the control was matched on
	Input    string // input/textarea/select
	Type     string // input type attribute
	Required bool
}

// Form is the resolver's view of one page.
type Form struct {
	Fields         []Field
	SubmitSelector string
}

// Find returns the first field of kind, or ok=false.
func (f Form) Find(kind FieldKind) (Field, bool) {
	for _, fl := range f.Fields {
		if fl.Kind == kind {
			return fl, true
		}
	}
	return Field{}, false
}

// Questions returns controls the resolver could not classify; these get
// answered from the profile's canned answers.
func (f Form) Questions() []Field {
	var out []Field
	for _, fl := range f.Fields {
		if fl.Kind == FieldQuestion {
			out = append(out, fl)
		}
	}
	return out
}

// ResolveForm discovers form controls in html by label/name/type heuristics.
// Third-party markup drifts without notice, so nothing here depends on a
// site-specific selector.
func ResolveForm(html string) (Form, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Form{}, fmt.Errorf("parse form html: %w", err)
	}

	var form Form
	seen := map[string]bool{}

	doc.Find("input, textarea, select").Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		typ, _ := sel.Attr("type")
		typ = strings.ToLower(typ)

		if tag == "input" {
			switch typ {
			case "hidden", "submit", "button", "image", "reset":
				return
			}
		}

		selector := cssSelectorFor(sel)
		if selector == "" || seen[selector] {
			return
		}
		seen[selector] = true

		label := labelTextFor(doc, sel)
		_, required := sel.Attr("required")

		f := Field{
			Kind:     classify(label, attrBlob(sel), tag, typ),
			Selector: selector,
			Label:    label,
			Input:    tag,
			Type:     typ,
			Required: required,
		}
		form.Fields = append(form.Fields, f)
	})

	form.SubmitSelector = findSubmit(doc)
	return form, nil
}

// cssSelectorFor builds a stable selector from id or name, never position.
func cssSelectorFor(sel *goquery.Selection) string {
	if id, ok := sel.Attr("id"); ok && id != "" && !strings.ContainsAny(id, " :.[]") {
		return "#" + id
	}
	if name, ok := sel.Attr("name"); ok && name != "" {
		return fmt.Sprintf(`%s[name=%q]`, goquery.NodeName(sel), name)
	}
	return ""
}

// labelTextFor gathers the text a human would read next to the control:
// label[for], an enclosing label, aria-label, placeholder.
func labelTextFor(doc *goquery.Document, sel *goquery.Selection) string {
	if id, ok := sel.Attr("id"); ok && id != "" {
		if l := doc.Find(fmt.Sprintf(`label[for=%q]`, id)); l.Length() > 0 {
			if t := cleanLabel(l.First().Text()); t != "" {
				return t
			}
		}
	}
	if parent := sel.Closest("label"); parent.Length() > 0 {
		if t := cleanLabel(parent.First().Text()); t != "" {
			return t
		}
	}
	if aria, ok := sel.Attr("aria-label"); ok && cleanLabel(aria) != "" {
		return cleanLabel(aria)
	}
	if ph, ok := sel.Attr("placeholder"); ok && cleanLabel(ph) != "" {
		return cleanLabel(ph)
	}
	return ""
}

func attrBlob(sel *goquery.Selection) string {
	var parts []string
	for _, a := range []string{"name", "id", "autocomplete", "class"} {
		if v, ok := sel.Attr(a); ok {
			parts = append(parts, v)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func classify(label, attrs, tag, typ string) FieldKind {
	blob := strings.ToLower(label) + " " + attrs

	has := func(needles ...string) bool {
		for _, n := range needles {
			if strings.Contains(blob, n) {
				return true
			}
		}
		return false
	}

	switch {
	case tag == "input" && typ == "file":
		if has("cover") {
			return FieldCoverLetter
		}
		return FieldResume
	case has("verification code", "verify code", "security code", "one-time", "otp"):
		return FieldVerifyCode
	case typ == "email" || has("email", "e-mail"):
		return FieldEmail
	case typ == "tel" || has("phone", "mobile"):
		return FieldPhone
	case has("first name", "firstname", "first_name", "given name"):
		return FieldFirstName
	case has("last name", "lastname", "last_name", "family name", "surname"):
		return FieldLastName
	case has("full name", "your name", "fullname") || (has("name") && !has("company", "user")):
		return FieldFullName
	case has("linkedin"):
		return FieldLinkedIn
	case has("website", "portfolio", "github"):
		return FieldWebsite
	case has("cover letter", "cover_letter", "coverletter", "why do you", "motivation"):
		return FieldCoverLetter
	case has("location", "city", "country"):
		return FieldLocation
	default:
		return FieldQuestion
	}
}

var submitWords = []string{"submit", "apply", "send application", "continue", "verify"}

func findSubmit(doc *goquery.Document) string {
	selector := ""

	doc.Find(`button, input[type="submit"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(cleanLabel(sel.Text()))
		if v, ok := sel.Attr("value"); ok {
			text += " " + strings.ToLower(v)
		}
		typ, _ := sel.Attr("type")

		match := typ == "submit"
		for _, w := range submitWords {
			if strings.Contains(text, w) {
				match = true
				break
			}
		}
		if !match {
			return true
		}

		selector = cssSelectorFor(sel)
		if selector == "" {
			if typ == "submit" {
				selector = `input[type="submit"]`
				if goquery.NodeName(sel) == "button" {
					selector = `button[type="submit"]`
				}
			} else {
				return true // keep looking for an addressable one
			}
		}
		return false
	})

	if selector == "" {
		selector = `button[type="submit"]`
	}
	return selector
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "*")
	return strings.Join(strings.Fields(s), " ")
}
