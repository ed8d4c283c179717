package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanerClean(t *testing.T) {
	t.Parallel()

	c := newCleaner(DefaultConfig().Boilerplate, DefaultConfig().Annotations)
	cases := []struct{ in, want string }{
		{"SHOW SCREEN TO THE RESPONDENT Please answer Q3", "Please answer Q3"},
		{"show screen to the respondent   Which apps?", "Which apps?"},
		{"Q1 Age CONTINUE ONLY IF 18+", "Q1 Age 18+"},
		{"Under 18 TERMINATE", "Under 18"},
		{"Which apps (MA) do you use", "Which apps do you use"},
		{"Gender (SA)", "Gender"},
		{"  Which\n\tplatforms   do you\r\nuse?  ", "Which platforms do you use?"},
		{"lowercase (ma) annotations are kept", "lowercase (ma) annotations are kept"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Clean(tc.in), "input %q", tc.in)
	}
}

func TestExtractQuestionID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "Q10.1 Which apps", want: "Q10.1", ok: true},
		{in: "see Q7 and Q8", want: "Q7", ok: true},
		{in: "Q12. Next", want: "Q12", ok: true},
		{in: "no question here", want: "", ok: false},
		{in: "q3 lowercase", want: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := ExtractQuestionID(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}
