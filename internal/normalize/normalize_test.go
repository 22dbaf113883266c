package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mdm-linkage/internal/record"
)

func TestAbbrevRulesExpand(t *testing.T) {
	rules := NewAbbrevRules(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "street suffix",
			input: "1 Main St, Springfield, IL 62701",
			want:  "1 MAIN STREET, Springfield, IL 62701",
		},
		{
			name:  "trailing dot",
			input: "1 Main St., Springfield, IL 62701",
			want:  "1 MAIN STREET, Springfield, IL 62701",
		},
		{
			name:  "several abbreviations",
			input: "12  N Oak Ave Apt 4, Salem, MA 01970",
			want:  "12 NORTH OAK AVENUE APARTMENT 4, Salem, MA 01970",
		},
		{
			name:  "state code untouched",
			input: "5 Elm Rd, Springfield, ST 00001",
			want:  "5 ELM ROAD, Springfield, ST 00001",
		},
		{
			name:  "no comma",
			input: "9 Lake Blvd",
			want:  "9 LAKE BOULEVARD",
		},
		{
			name:  "already long form",
			input: "1 Main Street, Springfield, IL 62701",
			want:  "1 MAIN STREET, Springfield, IL 62701",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Expand(tt.input))
		})
	}
}

func TestAbbrevRulesCustom(t *testing.T) {
	rules := NewAbbrevRules(map[string]string{"HSE": "HOUSE"})
	assert.Equal(t, "OLD HOUSE ST, Town, TX 75001", rules.Expand("Old Hse St, Town, TX 75001"))
}

func TestCleanerClean(t *testing.T) {
	c := NewCleaner(nil)

	tests := map[string]string{
		"DR. JOHN SMITH":      "JOHN SMITH",
		"JOHN SMITH MD":       "JOHN SMITH",
		"MRS. ANNA BROWN":     "ANNA BROWN",
		"MARY JONES, CCC-SLP": "MARY JONES",
		"SMITH, JOHN":         "SMITH, JOHN",
		"O'BRIEN PATRICK":     "OBRIEN PATRICK",
		"  PETER PAN  ":       "PETER PAN",
		"MARTIN MARSH":        "MARTIN MARSH",
		"":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, c.Clean(in), "%q", in)
	}
}

func TestProcessor(t *testing.T) {
	p := NewProcessor(nil, 0)
	assert.Equal(t, DefaultMinWords, p.MinWords)

	out, fallbacks := p.Process([]record.Record{
		{ID: 3, Name: "DR. JOHN SMITH"},
		{ID: 1, Name: "zed corp"},
		{ID: 2, Name: "Al"},
		{ID: 4, Name: "JOHN SMITH"},
	})

	assert.Equal(t, 1, fallbacks)
	var names []string
	var ids []record.ID
	for _, rec := range out {
		names = append(names, rec.Name)
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"Al", "JOHN SMITH", "JOHN SMITH", "zed corp"}, names)
	assert.Equal(t, []record.ID{2, 3, 4, 1}, ids)
}

func TestProcessorFallback(t *testing.T) {
	var gotMinWords int
	short := ExtractorFunc(func(text string, minWords int) string {
		gotMinWords = minWords
		return "X"
	})
	p := NewProcessor(short, 2)

	name, failed := p.Name("DR. JOHN SMITH")
	assert.True(t, failed)
	assert.Equal(t, "JOHN SMITH", name)
	assert.Equal(t, 2, gotMinWords)

	long := ExtractorFunc(func(text string, _ int) string { return "JOHN SMITH" })
	name, failed = NewProcessor(long, 2).Name("Mr John Smith of Acme Inc")
	assert.False(t, failed)
	assert.Equal(t, "JOHN SMITH", name)
}
