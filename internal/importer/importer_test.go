package importer

import (
	"errors"
	"strings"
	"testing"

	"doorprize/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Name,Email,Phone,Institution Type,Total Score\n"

func TestParse_AliceAndBob(t *testing.T) {
	res, err := Parse(strings.NewReader(header +
		"Alice,alice@example.com,0811,University,50\n" +
		"Bob,bob@example.com,0812,Hospital,850\n"))
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Empty(t, res.Warnings)

	alice, bob := res.Candidates[0], res.Candidates[1]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, "0811", alice.Phone)
	assert.Equal(t, "University", alice.InstitutionType)
	assert.Equal(t, 1, selection.Weight(alice.TotalScore))
	assert.Equal(t, 300, selection.Weight(bob.TotalScore))
	assert.NotEmpty(t, alice.ID)
	assert.NotEqual(t, alice.ID, bob.ID)
}

func TestParse_HeaderHandling(t *testing.T) {
	t.Run("case, spacing and BOM are ignored", func(t *testing.T) {
		res, err := Parse(strings.NewReader("\ufeff name , TOTAL SCORE ,institution\nCarol,120,Dinas\n"))
		require.NoError(t, err)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, "Carol", res.Candidates[0].Name)
		assert.Equal(t, "Dinas", res.Candidates[0].Institution)
		assert.Equal(t, 5, selection.Weight(res.Candidates[0].TotalScore))
	})

	t.Run("missing score column", func(t *testing.T) {
		_, err := Parse(strings.NewReader("Name,Email\nCarol,c@example.com\n"))
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := Parse(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrMissingColumn)
	})
}

func TestParse_RowErrors(t *testing.T) {
	res, err := Parse(strings.NewReader(header +
		"Dave,d@example.com,1,School,lots\n" +
		",,,,\n" +
		",nobody@example.com,2,School,300\n" +
		"Erin,e@example.com,3,School,\n" +
		"Frank,f@example.com,4\n"))
	require.NoError(t, err)

	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "Dave", res.Candidates[0].Name)
	assert.False(t, res.Candidates[0].TotalScore.Valid())
	assert.Equal(t, 0, selection.Weight(res.Candidates[0].TotalScore))
	assert.Equal(t, "Erin", res.Candidates[1].Name)
	assert.Equal(t, 1, selection.Weight(res.Candidates[1].TotalScore))
	assert.Equal(t, "Frank", res.Candidates[2].Name)

	require.Len(t, res.Warnings, 2)
	assert.True(t, errors.Is(res.Warnings[0], ErrInvalidScore))
	assert.Equal(t, 2, res.Warnings[0].Line)
	assert.Equal(t, "lots", res.Warnings[0].Value)
	assert.ErrorIs(t, res.Warnings[1], ErrMissingName)
	assert.Equal(t, 4, res.Warnings[1].Line)
}

func TestParse_MalformedCSV(t *testing.T) {
	_, err := Parse(strings.NewReader(header + "\"Gina,g@example.com,5,School,10\n"))
	assert.Error(t, err)
}

func TestAssignIDs(t *testing.T) {
	csv := header +
		"Hana,h@example.com,6,School,10\n" +
		"Hana,other@example.com,7,School,10\n" +
		"Hana,h@example.com,6,School,10\n"

	first, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	second, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)

	ids := map[string]bool{}
	for i, c := range first.Candidates {
		assert.Equal(t, c.ID, second.Candidates[i].ID, "ids must be stable across imports")
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3, "rows sharing a name must get distinct ids")
}
