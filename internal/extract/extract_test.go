package extract

import (
	"testing"

	"internship-engine/internal/domain"
)

func TestExtractScenario(t *testing.T) {
	x := New(nil)
	c := x.Extract(Input{
		Body:   "Name: Jane Doe\nPhone: +1234567890\nLinkedIn: https://www.linkedin.com/in/janedoe",
		Sender: "Jane Doe <jane@x.com>",
	})

	checks := []struct{ field, got, want string }{
		{"name", c.Name, "Jane Doe"},
		{"email", c.Email, "jane@x.com"},
		{"phone", c.Phone, "+1234567890"},
		{"linkedin", c.LinkedIn, "https://www.linkedin.com/in/janedoe"},
		{"github", c.GitHub, domain.NA},
		{"internship", c.Internship, domain.NA},
	}
	for _, ck := range checks {
		if ck.got != ck.want {
			t.Errorf("%s = %q, want %q", ck.field, ck.got, ck.want)
		}
	}
}

func TestExtractEmptyBody(t *testing.T) {
	x := New(nil)
	for _, body := range []string{"", "  \n\t"} {
		c := x.Extract(Input{Body: body, Sender: "jane@x.com"})
		if c.Email != "jane@x.com" {
			t.Errorf("email = %q, want sender", c.Email)
		}
		for name, v := range map[string]string{
			"name": c.Name, "phone": c.Phone, "linkedin": c.LinkedIn,
			"github": c.GitHub, "internship": c.Internship,
		} {
			if v != domain.NA {
				t.Errorf("body %q: %s = %q, want %q", body, name, v, domain.NA)
			}
		}
	}
}

func TestExtractEmptyBodyStillResolvesSubjectCode(t *testing.T) {
	c := New(nil).Extract(Input{
		Sender:  "jane@x.com",
		Subject: "Internship Application - PY",
		CodeMap: map[string]string{"PY": "Python Developer"},
	})
	if c.Internship != "Python Developer" {
		t.Errorf("internship = %q", c.Internship)
	}
	if c.Name != domain.NA {
		t.Errorf("name = %q, want %q", c.Name, domain.NA)
	}
}

func TestSubjectCodeResolution(t *testing.T) {
	tests := []struct {
		name    string
		codeMap map[string]string
		want    string
	}{
		{"mapped", map[string]string{"PY": "Python Developer"}, "Python Developer"},
		{"unmapped", map[string]string{}, "PY"},
		{"nil map", nil, "PY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil).Extract(Input{
				Body:    "Hello, please find my CV attached.",
				Sender:  "jane@x.com",
				Subject: "Internship Application - PY",
				CodeMap: tt.codeMap,
			})
			if c.Internship != tt.want {
				t.Errorf("internship = %q, want %q", c.Internship, tt.want)
			}
		})
	}
}

func TestBodyCodeAndSubjectPrecedence(t *testing.T) {
	codes := map[string]string{"WD": "Web Developer", "ML": "Machine Learning Intern"}

	c := New(nil).Extract(Input{Body: "Internship Code: WD", Sender: "a@b.c", CodeMap: codes})
	if c.Internship != "Web Developer" {
		t.Errorf("body code: internship = %q", c.Internship)
	}

	c = New(nil).Extract(Input{
		Body: "Internship Code: WD", Sender: "a@b.c", CodeMap: codes,
		Subject: "Internship Application – ML",
	})
	if c.Internship != "Machine Learning Intern" {
		t.Errorf("subject should win: internship = %q", c.Internship)
	}
}

func TestNameFallbacks(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"body name wins", Input{Body: "Name: Body Name", Sender: "Display <d@x.com>", Subject: "Internship Application - PY - Subject Name"}, "Body Name"},
		{"subject name", Input{Body: "hi", Sender: "Display <d@x.com>", Subject: "Internship Application - PY - Subject Name"}, "Subject Name"},
		{"display name", Input{Body: "hi", Sender: `"Jane Q. Doe" <jane@x.com>`}, "Jane Q. Doe"},
		{"local part", Input{Body: "hi", Sender: "jane.doe@x.com"}, "jane.doe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(nil).Extract(tt.in).Name; got != tt.want {
				t.Errorf("name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRicherPatterns(t *testing.T) {
	body := "Phone: (555) 123-4567\n" +
		"LinkedIn: linkedin.com/in/jdoe\n" +
		"GitHub: github.com/jdoe\n"
	c := New(nil).Extract(Input{Body: body, Sender: "j@x.com"})
	if c.Phone != "(555) 123-4567" {
		t.Errorf("phone = %q", c.Phone)
	}
	if c.LinkedIn != "linkedin.com/in/jdoe" {
		t.Errorf("linkedin = %q", c.LinkedIn)
	}
	if c.GitHub != "github.com/jdoe" {
		t.Errorf("github = %q", c.GitHub)
	}

	c = New(nil).Extract(Input{Body: "see https://github.com/octo-cat and https://www.linkedin.com/in/octo", Sender: "j@x.com"})
	if c.GitHub != "https://github.com/octo-cat" {
		t.Errorf("github url = %q", c.GitHub)
	}
	if c.LinkedIn != "https://www.linkedin.com/in/octo" {
		t.Errorf("linkedin url = %q", c.LinkedIn)
	}
}

func TestPatternsAreCaseInsensitive(t *testing.T) {
	c := New(nil).Extract(Input{Body: "NAME: Ada\nphone: 12345\ninternship code: py", Sender: "a@x.com", CodeMap: map[string]string{"PY": "Python Developer"}})
	if c.Name != "Ada" || c.Phone != "12345" {
		t.Errorf("name/phone = %q/%q", c.Name, c.Phone)
	}
	// code lookup is exact; an unmapped case variant stays raw
	if c.Internship != "py" {
		t.Errorf("internship = %q, want raw %q", c.Internship, "py")
	}
}

func TestPhoneWithoutDigits(t *testing.T) {
	c := New(nil).Extract(Input{Body: "Phone: not given", Sender: "a@x.com"})
	if c.Phone != domain.NA {
		t.Errorf("phone = %q, want %q", c.Phone, domain.NA)
	}
}

func TestSplitSender(t *testing.T) {
	tests := []struct {
		in, addr, display string
	}{
		{"Jane Doe <jane@x.com>", "jane@x.com", "Jane Doe"},
		{`"Doe, Jane" <jane@x.com>`, "jane@x.com", "Doe, Jane"},
		{"jane@x.com", "jane@x.com", ""},
		{"<jane@x.com>", "jane@x.com", ""},
		{"Jane [Intern] <jane@x.com>", "jane@x.com", "Jane [Intern]"},
		{"", "", ""},
	}
	for _, tt := range tests {
		addr, display := SplitSender(tt.in)
		if addr != tt.addr || display != tt.display {
			t.Errorf("SplitSender(%q) = %q, %q; want %q, %q", tt.in, addr, display, tt.addr, tt.display)
		}
	}
}

func TestResolve(t *testing.T) {
	m := map[string]string{"GD": "Graphic Designer", "EMPTY": ""}
	tests := []struct{ code, want string }{
		{"GD", "Graphic Designer"},
		{"XX", "XX"},
		{"EMPTY", "EMPTY"},
		{"", domain.NA},
		{domain.NA, domain.NA},
	}
	for _, tt := range tests {
		if got := Resolve(tt.code, m); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
