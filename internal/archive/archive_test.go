package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/quill/internal/analyzer"
	"github.com/oxhq/quill/internal/types"
	"github.com/oxhq/quill/models"
)

func TestRoundTrip(t *testing.T) {
	api := analyzer.ModuleAPI{
		Namespace: "acme",
		Name:      "mathx",
		Types: []analyzer.ExportedType{
			{Name: "Ratio", Body: types.NewStruct([]types.Field{
				{Name: "num", Type: types.Int()},
				{Name: "den", Type: types.Int()},
			}, false)},
		},
		Procedures: []analyzer.ExportedProc{
			{Name: "half", Type: types.NewFunction(types.ProcSpec{
				Args: []*types.Type{types.Int()}, Return: types.Int(),
			})},
		},
		Initializers: map[string][]string{"Ratio": {"ratio_of"}},
	}
	row, err := models.FromAPI(api, "function half(n: int) -> int;", []byte("package mathx"))
	require.NoError(t, err)

	data, err := Encode(&row)
	require.NoError(t, err)
	assert.Equal(t, Magic, string(data[:4]))

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "acme", decoded.Namespace)
	assert.Equal(t, "mathx", decoded.Name)
	assert.Equal(t, row.APIHeader, decoded.APIHeader)
	assert.Equal(t, []byte("package mathx"), decoded.TargetBlob)

	back, err := decoded.API()
	require.NoError(t, err)
	require.Len(t, back.Types, 1)
	assert.True(t, api.Types[0].Body.Equals(back.Types[0].Body))
	require.Len(t, back.Procedures, 1)
	assert.True(t, api.Procedures[0].Type.Equals(back.Procedures[0].Type))
	assert.Equal(t, api.Initializers, back.Initializers)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not an archive"))
	require.Error(t, err)

	row, err := models.FromAPI(analyzer.ModuleAPI{Namespace: "a", Name: "b"}, "", nil)
	require.NoError(t, err)
	data, err := Encode(&row)
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-1])
	require.Error(t, err)

	_, err = Decode(append(data, 0xFF))
	require.Error(t, err)
}
