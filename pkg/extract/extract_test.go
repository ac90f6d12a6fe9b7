package extract

import (
	"testing"

	"github.com/OFFIS-RIT/storyweb/pkg/ontology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanEntityName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "John Smith", want: "John Smith"},
		{in: "Mr. John Smith", want: "John Smith"},
		{in: "mrs Jane Doe's", want: "Jane Doe"},
		{in: "  \"The Times\" ", want: "Times"},
		{in: "Frau Dr Müller", want: "Dr Müller"},
		{in: "Acme’s", want: "Acme"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanEntityName(tt.in))
		})
	}
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "john-smith", Fingerprint("John Smith"))
	assert.Equal(t, "john-smith", Fingerprint("Smith, John"))
	assert.Equal(t, "angela-merkel", Fingerprint("Angéla  MERKEL"))
	assert.Equal(t, "", Fingerprint("--"))
	assert.Equal(t, "sao-paulo", Slugify("São Paulo", "-"))
}

func TestTagID(t *testing.T) {
	// sha1("a1>john-smith")
	id := TagID("a1", "john-smith")
	assert.Len(t, id, 40)
	assert.Equal(t, id, TagID("a1", "john-smith"))
	assert.NotEqual(t, id, TagID("a2", "john-smith"))
}

func TestMapEntityType(t *testing.T) {
	for label, want := range map[string]string{
		"PERSON": ontology.PERSON,
		"per":    ontology.PERSON,
		"ORG":    ontology.ORGANIZATION,
		"GPE":    ontology.LOCATION,
	} {
		got, ok := MapEntityType(label)
		require.True(t, ok, label)
		assert.Equal(t, want, got)
	}
	_, ok := MapEntityType("DATE")
	assert.False(t, ok)
}

func TestBuild(t *testing.T) {
	raw := RawArticle{
		ID:    "art1",
		Site:  "example.org",
		Title: "Smith buys Acme",
		Sentences: []RawSentence{
			{Text: "Mr. John Smith bought Acme.", Entities: []Entity{
				{Text: "Mr. John Smith", Label: "PERSON"},
				{Text: "Acme", Label: "ORG"},
			}},
			{Text: "Nothing here.", Entities: []Entity{{Text: "Monday", Label: "DATE"}}},
			{Text: "Smith, John said Acme's board agreed. Smith left.", Entities: []Entity{
				{Text: "Smith, John", Label: "PERSON"},
				{Text: "Acme's", Label: "ORG"},
				{Text: "Smith", Label: "PERSON"},
			}},
		},
	}

	got := Build(raw)
	assert.Equal(t, 2, got.Article.Tags)
	assert.Equal(t, 4, got.Article.Mentions)

	require.Len(t, got.Sentences, 2)
	assert.Equal(t, 0, got.Sentences[0].Sequence)
	assert.Equal(t, 2, got.Sentences[1].Sequence)

	require.Len(t, got.Tags, 2)
	person := got.Tags[0]
	assert.Equal(t, TagID("art1", "john-smith"), person.ID)
	assert.Equal(t, person.ID, person.Cluster)
	assert.Equal(t, "john-smith", person.Fingerprint)
	assert.Equal(t, ontology.PERSON, person.Type)
	assert.Equal(t, "John Smith", person.Label)
	assert.Equal(t, 2, person.Count)
	assert.InDelta(t, 0.5, person.Frequency, 1e-9)

	org := got.Tags[1]
	assert.Equal(t, "acme", org.Fingerprint)
	assert.Equal(t, "Acme", org.ClusterLabel)

	assert.Len(t, got.TagSentences, 4)
}

func TestBuild_NoMentions(t *testing.T) {
	got := Build(RawArticle{ID: "empty", Sentences: []RawSentence{{Text: "Hi."}}})
	assert.Empty(t, got.Tags)
	assert.Empty(t, got.Sentences)
	assert.Zero(t, got.Article.Mentions)
}
