package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/normalize"
)

func TestBuildQueries_FullReference(t *testing.T) {
	n := normalize.New()
	ref := domain.ParsedReference{
		Title:       "Deep Residual Learning for Image Recognition",
		FamilyNames: []string{"He", "Zhang"},
		Year:        2016,
		Journal:     "IEEE Conference on Computer Vision",
	}

	strategies, err := BuildQueries(n, &ref, "He K, Zhang X. Deep residual learning. 2016.")
	require.NoError(t, err)

	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		StrategyTitleAuthorYear,
		StrategyTitleAuthor,
		StrategyAuthorYearVenue,
		StrategyTitleOnly,
		StrategyRawText,
	}, names)

	assert.Contains(t, strategies[0].Text, "he")
	assert.Contains(t, strategies[0].Text, "2016")
}

func TestBuildQueries_SparseReferences(t *testing.T) {
	n := normalize.New()

	t.Run("title only", func(t *testing.T) {
		ref := domain.ParsedReference{Title: "Generative Adversarial Networks"}
		strategies, err := BuildQueries(n, &ref, "")
		require.NoError(t, err)
		require.Len(t, strategies, 1)
		assert.Equal(t, StrategyTitleOnly, strategies[0].Name)
	})

	t.Run("author year venue without title", func(t *testing.T) {
		ref := domain.ParsedReference{
			FamilyNames: []string{"Goodfellow"},
			Year:        2014,
			Journal:     "NeurIPS",
		}
		strategies, err := BuildQueries(n, &ref, "")
		require.NoError(t, err)
		require.Len(t, strategies, 1)
		assert.Equal(t, StrategyAuthorYearVenue, strategies[0].Name)
	})

	t.Run("raw text fallback only", func(t *testing.T) {
		strategies, err := BuildQueries(n, &domain.ParsedReference{}, "Goodfellow et al., Generative adversarial nets, 2014")
		require.NoError(t, err)
		require.Len(t, strategies, 1)
		assert.Equal(t, StrategyRawText, strategies[0].Name)
	})
}

func TestBuildQueries_NoViableQuery(t *testing.T) {
	n := normalize.New()
	_, err := BuildQueries(n, &domain.ParsedReference{}, "   ")
	assert.ErrorIs(t, err, domain.ErrNoViableQuery)
}

func TestBuildQueries_RawTextTruncated(t *testing.T) {
	n := normalize.New()
	long := strings.Repeat("reference text ", 50)

	strategies, err := BuildQueries(n, &domain.ParsedReference{}, long)
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.LessOrEqual(t, len([]rune(strategies[0].Text)), rawTextLimit)
}

func TestBuildQueries_SurnameKeepsLastToken(t *testing.T) {
	n := normalize.New()
	ref := domain.ParsedReference{
		Title:       "A study of something specific",
		FamilyNames: []string{"Maria van der Berg"},
	}

	strategies, err := BuildQueries(n, &ref, "")
	require.NoError(t, err)
	require.Equal(t, StrategyTitleAuthor, strategies[0].Name)
	assert.True(t, strings.HasSuffix(strategies[0].Text, "berg"))
}

func TestTitleOnlyRetry(t *testing.T) {
	n := normalize.New()

	t.Run("with title", func(t *testing.T) {
		ref := domain.ParsedReference{Title: "ImageNet Classification"}
		retry, ok := titleOnlyRetry(n, &ref)
		require.True(t, ok)
		assert.Equal(t, StrategyTitleOnly, retry.Name)
		assert.NotEmpty(t, retry.Text)
	})

	t.Run("without title", func(t *testing.T) {
		_, ok := titleOnlyRetry(n, &domain.ParsedReference{})
		assert.False(t, ok)
	})
}
