package css

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"l14box/pkg/html"
)

func TestQuery_SeesThroughLayoutNodes(t *testing.T) {
	td := element("td", map[string]string{"class": "c"})
	tr := element("tr", nil)
	tr.SetFlag(html.FlagInsertedByLayout)
	tbody := element("tbody", nil)
	tbody.SetFlag(html.FlagInsertedByLayout)
	tr.AddChild(td)
	tbody.AddChild(tr)
	table := element("table", map[string]string{"id": "t"})
	table.AddChild(tbody)
	before := element(html.TagBefore, nil)
	before.SetFlag(html.FlagInsertedByLayout | html.FlagBeforePseudo)
	table.AddChild(before)
	root := docWith(table)

	q := NewQuery(root)
	got, err := q.All("table > td")
	require.NoError(t, err)
	assert.Equal(t, []*html.Node{td}, got)

	got, err = q.All("tr, tbody")
	require.NoError(t, err)
	assert.Empty(t, got, "layout rows are not author elements")

	first, err := q.First("#t")
	require.NoError(t, err)
	assert.Same(t, table, first)

	ok, err := q.Matches(td, ".c:first-child")
	require.NoError(t, err)
	assert.True(t, ok)

	up, err := q.Closest(td, "table")
	require.NoError(t, err)
	assert.Same(t, table, up)
	up, err = q.Closest(td, "ul")
	require.NoError(t, err)
	assert.Nil(t, up)
}

func TestQuery_InvalidSelector(t *testing.T) {
	q := NewQuery(docWith(element("p", nil)))
	_, err := q.All("p[")
	assert.Error(t, err)
	none, err := q.First("div")
	require.NoError(t, err)
	assert.Nil(t, none)
}
