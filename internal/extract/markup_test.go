package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/wikiedits/internal/model"
)

func TestExtractAbstract(t *testing.T) {
	got, err := ExtractAbstract("pre\\begin{abstract}\nBody text\n\\end{abstract}post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "\nBody text\n" {
		t.Errorf("unexpected abstract %q", got)
	}
	if _, err := ExtractAbstract("no environment"); !errors.Is(err, ErrNoAbstract) {
		t.Errorf("expected ErrNoAbstract, got %v", err)
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty blocks collapse", `a \DIFdelbegin \DIFdelend b`, "a  b"},
		{"block markers become spaces", `a\DIFaddbegin \DIFadd{x}\DIFaddend b`, `a  \DIFadd{x}  b`},
		{"float variants", `a\DIFdelbeginFL \DIFdelFL{x}\DIFdelendFL b`, `a  \DIFdelFL{x}  b`},
		{"comment lines", "a\n%DIF < old line\nb", "a\nb"},
		{"inline comment", "a %DIF > note\nb", "a \nb"},
		{"math and dollars", `cost $5 MATH and \$6`, "cost 5  and 6"},
		{"url", `see \DIFadd{https://example.org/page} now`, `see \DIFadd{URL} now`},
		{"broken scheme", "at http : //example.org", "at URL"},
		{"newline in innermost group", "\\DIFadd{two\nlines}", `\DIFadd{two lines}`},
		{"paragraph", "one\n\n  \ntwo", "one\n\\PAR\ntwo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Plato \\DIFdelbegin \\DIFdel{was}\\DIFdelend \\DIFaddbegin \\DIFadd{is}\\DIFaddend a philosopher.\n\nSecond \\DIFadd{para\ngraph}.",
		"%DIF comment\nText with $math$ and MATH and https://x.org.\n\n\n\nEnd",
		"\\DIFaddbegin \\DIFadd{nested \\emph{deep\n\nbreak} here}\\DIFaddend",
		"  leading and trailing  \n\n",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		if twice := Canonicalize(once); twice != once {
			t.Errorf("not idempotent for %q:\nonce  %q\ntwice %q", in, once, twice)
		}
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []model.DiffToken
	}{
		{
			name: "plain text",
			in:   "just text",
			want: []model.DiffToken{{Kind: model.TokenText, Text: "just text"}},
		},
		{
			name: "markers",
			in:   `a \DIFdel{b} \DIFadd{c} d`,
			want: []model.DiffToken{
				{Kind: model.TokenText, Text: "a "},
				{Kind: model.TokenDel, Text: "b"},
				{Kind: model.TokenText, Text: " "},
				{Kind: model.TokenAdd, Text: "c"},
				{Kind: model.TokenText, Text: " d"},
			},
		},
		{
			name: "formatting inside marker inherits kind",
			in:   `\DIFadd{very \textbf{bold} move}`,
			want: []model.DiffToken{{Kind: model.TokenAdd, Text: "very bold move"}},
		},
		{
			name: "formatting outside keeps content",
			in:   `an \emph{important} point`,
			want: []model.DiffToken{{Kind: model.TokenText, Text: "an important point"}},
		},
		{
			name: "optional argument skipped",
			in:   `\cite[p. 4]{ref} done`,
			want: []model.DiffToken{{Kind: model.TokenText, Text: "ref done"}},
		},
		{
			name: "no-argument command becomes space",
			in:   `a\newline b`,
			want: []model.DiffToken{{Kind: model.TokenText, Text: "a  b"}},
		},
		{
			name: "escapes",
			in:   `50\% \& more`,
			want: []model.DiffToken{{Kind: model.TokenText, Text: "50% & more"}},
		},
		{
			name: "environment names dropped",
			in:   `\begin{quote}x\end{quote}`,
			want: []model.DiffToken{{Kind: model.TokenText, Text: "x"}},
		},
		{
			name: "paragraph",
			in:   "a\n\\PAR\nb",
			want: []model.DiffToken{{Kind: model.TokenText, Text: "a\n\n\n\nb"}},
		},
		{
			name: "empty marker kept",
			in:   `a\DIFdel{}b`,
			want: []model.DiffToken{
				{Kind: model.TokenText, Text: "a"},
				{Kind: model.TokenDel},
				{Kind: model.TokenText, Text: "b"},
			},
		},
		{
			name: "nearest marker wins",
			in:   `\DIFdel{x \DIFadd{y} z}`,
			want: []model.DiffToken{
				{Kind: model.TokenDel, Text: "x "},
				{Kind: model.TokenAdd, Text: "y"},
				{Kind: model.TokenDel, Text: " z"},
			},
		},
		{
			name: "adjacent markers stay separate",
			in:   `\DIFdel{a}\DIFdel{b}`,
			want: []model.DiffToken{
				{Kind: model.TokenDel, Text: "a"},
				{Kind: model.TokenDel, Text: "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommands(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseCommands_Malformed(t *testing.T) {
	for _, in := range []string{
		`\DIFdel{unterminated`,
		`stray } brace`,
		`\DIFadd no argument`,
		strings.Repeat("{", maxGroupDepth+2) + strings.Repeat("}", maxGroupDepth+2),
	} {
		if _, err := ParseCommands(in); !errors.Is(err, ErrMalformedMarkup) {
			t.Errorf("%q: expected ErrMalformedMarkup, got %v", in, err)
		}
	}
}

func TestNormalizeWithOffsets(t *testing.T) {
	out, mapped := normalizeWithOffsets("  The  old\tvalue. ", []int{0, 7, 19})
	if out != "The old value." {
		t.Errorf("unexpected text %q", out)
	}
	want := []int{0, 4, len(out)}
	if !reflect.DeepEqual(mapped, want) {
		t.Errorf("expected offsets %v, got %v", want, mapped)
	}
}
