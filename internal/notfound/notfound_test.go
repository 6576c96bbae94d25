package notfound_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/circularqa/coreqa/internal/notfound"
)

func TestClassify_UdvashTakesPriorityOverGeneralUniversityMention(t *testing.T) {
	assert.Equal(t, notfound.CategoryUdvash, notfound.Classify("উদ্ভাস বিশ্ববিদ্যালয় ভর্তি কোচিং"))
}

func TestClassify_Medical(t *testing.T) {
	assert.Equal(t, notfound.CategoryMedical, notfound.Classify("মেডিকেল ভর্তি পরীক্ষার তারিখ"))
}

func TestClassify_Engineering(t *testing.T) {
	assert.Equal(t, notfound.CategoryEngineering, notfound.Classify("KUET admission fee"))
}

func TestClassify_GSTCluster(t *testing.T) {
	assert.Equal(t, notfound.CategoryGSTCluster, notfound.Classify("গুচ্ছ ভর্তি পরীক্ষা"))
}

func TestClassify_SpecificUniversity(t *testing.T) {
	assert.Equal(t, notfound.CategorySpecificUniversity, notfound.Classify("DU admission circular"))
}

func TestClassify_DefaultWhenNothingMatches(t *testing.T) {
	assert.Equal(t, notfound.CategoryDefault, notfound.Classify("হ্যালো কেমন আছো"))
}

func TestTemplate_ReturnsNonEmptyForEveryCategory(t *testing.T) {
	questions := []string{
		"উদ্ভাস", "মেডিকেল", "KUET", "গুচ্ছ", "DU", "হ্যালো",
	}
	for _, q := range questions {
		assert.NotEmpty(t, notfound.Template(q))
	}
}

func TestIsNotFoundAnswer_MatchesCuratedPhrase(t *testing.T) {
	assert.True(t, notfound.IsNotFoundAnswer("দুঃখিত, এই বিষয়ে তথ্য পাওয়া যায়নি।"))
}

func TestIsNotFoundAnswer_DoesNotFalsePositiveOnGenericNegation(t *testing.T) {
	assert.False(t, notfound.IsNotFoundAnswer("ভর্তি পরীক্ষায় কোনো নেগেটিভ মার্কিং না থাকায় সব প্রশ্নের উত্তর দেওয়া যাবে।"))
}

func TestIsNotFoundAnswer_MatchesEnglishPhrase(t *testing.T) {
	assert.True(t, notfound.IsNotFoundAnswer("I don't know the answer to that."))
}
