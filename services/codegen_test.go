package services

import (
	"context"
	"testing"

	"alforge/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codeList []string

func (l codeList) EquipmentCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, c := range l {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestNormalizeCategoryCode(t *testing.T) {
	cases := map[string]string{
		"2":     "02",
		"02":    "02",
		" 5 ":   "05",
		"1-2":   "12",
		"123":   "23",
		"00":    "",
		"":      "",
		"abc":   "",
		"x7y":   "07",
		"10003": "03",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCategoryCode(in), "input %q", in)
	}
}

func TestCodeGeneratorNext(t *testing.T) {
	g := &CodeGenerator{Codes: codeList{"0201001", "0201002", "0202001", "0301005"}}
	ctx := context.Background()

	code, err := g.Next(ctx, "02", "01")
	require.NoError(t, err)
	assert.Equal(t, "0201003", code)

	code, err = g.Next(ctx, "05", "03")
	require.NoError(t, err)
	assert.Equal(t, "0503001", code)

	// gaps are not reused
	code, err = g.Next(ctx, "3", "1")
	require.NoError(t, err)
	assert.Equal(t, "0301006", code)
}

func TestCodeGeneratorCategoryNotSelected(t *testing.T) {
	g := &CodeGenerator{Codes: codeList{}}
	code, err := g.Next(context.Background(), "00", "01")
	assert.Equal(t, "", code)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = g.Next(context.Background(), "02", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestCodeGeneratorExhausted(t *testing.T) {
	g := &CodeGenerator{Codes: codeList{"0201999"}}
	_, err := g.Next(context.Background(), "02", "01")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestGeneratedCodesAreSequentialAndUnique(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, want := range []string{"0201001", "0201002", "0201003"} {
		it, err := e.equipment.CreateWithGeneratedCode(ctx, gestor, NewEquipment{UsageCode: "02", TypeCode: "01", Name: "Tent"})
		require.NoError(t, err)
		assert.Equal(t, want, it.Code)
		assert.Equal(t, "02", it.UsageCode)
		assert.Equal(t, "01", it.TypeCode)
	}

	_, err := e.equipment.Create(ctx, gestor, NewEquipment{Code: "0201002", Name: "Another tent"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	next, err := e.equipment.NextCode(ctx, gestor, "02", "01")
	require.NoError(t, err)
	assert.Equal(t, "0201004", next)
}
