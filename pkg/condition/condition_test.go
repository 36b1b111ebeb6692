package condition

import (
	"testing"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/stretchr/testify/require"
)

func row(props map[string]codec.Value) Row {
	return Row{
		ID:        record.ID{ClassID: 1, PositionalID: 2},
		ClassName: "person",
		Version:   1,
		Properties: props,
	}
}

func TestAtomEqAndNe(t *testing.T) {
	r := row(map[string]codec.Value{"name": codec.NewText("Ann")})
	eq := Atom{Column: "name", Operator: Eq, Args: []codec.Value{codec.NewText("Ann")}}
	require.True(t, eq.Eval(r))
	ne := Atom{Column: "name", Operator: Ne, Args: []codec.Value{codec.NewText("Bob")}}
	require.True(t, ne.Eval(r))
}

func TestUnknownPropertyEvaluatesFalseNotError(t *testing.T) {
	r := row(map[string]codec.Value{})
	atom := Atom{Column: "ghost", Operator: Eq, Args: []codec.Value{codec.NewText("x")}}
	require.False(t, atom.Eval(r))
}

func TestTextVsNumericNeverComparable(t *testing.T) {
	n, _ := codec.NewInt(codec.Integer, 5)
	r := row(map[string]codec.Value{"v": codec.NewText("5")})
	atom := Atom{Column: "v", Operator: Lt, Args: []codec.Value{n}}
	require.False(t, atom.Eval(r))
}

func TestBetweenInclusive(t *testing.T) {
	v, _ := codec.NewInt(codec.Integer, 5)
	lo, _ := codec.NewInt(codec.Integer, 5)
	hi, _ := codec.NewInt(codec.Integer, 10)
	r := row(map[string]codec.Value{"age": v})
	atom := Atom{Column: "age", Operator: Between, Args: []codec.Value{lo, hi}}
	require.True(t, atom.Eval(r))
}

func TestIgnoreCaseFolding(t *testing.T) {
	r := row(map[string]codec.Value{"name": codec.NewText("ANN")})
	atom := Atom{Column: "name", Operator: Eq, Args: []codec.Value{codec.NewText("ann")}, IgnoreCase: true}
	require.True(t, atom.Eval(r))
}

func TestLikeWildcards(t *testing.T) {
	r := row(map[string]codec.Value{"name": codec.NewText("Alexander")})
	require.True(t, Atom{Column: "name", Operator: Like, Args: []codec.Value{codec.NewText("Alex%")}}.Eval(r))
	require.True(t, Atom{Column: "name", Operator: Like, Args: []codec.Value{codec.NewText("A_exander")}}.Eval(r))
	require.False(t, Atom{Column: "name", Operator: Like, Args: []codec.Value{codec.NewText("Zlex%")}}.Eval(r))
}

func TestAndOrNot(t *testing.T) {
	r := row(map[string]codec.Value{"name": codec.NewText("Ann")})
	truthy := Atom{Column: "name", Operator: Eq, Args: []codec.Value{codec.NewText("Ann")}}
	falsy := Atom{Column: "name", Operator: Eq, Args: []codec.Value{codec.NewText("Bob")}}

	require.True(t, And{truthy, truthy}.Eval(r))
	require.False(t, And{truthy, falsy}.Eval(r))
	require.True(t, Or{falsy, truthy}.Eval(r))
	require.True(t, Not{falsy}.Eval(r))
}

func TestSyntheticColumns(t *testing.T) {
	r := row(nil)
	require.True(t, Atom{Column: ColClassName, Operator: Eq, Args: []codec.Value{codec.NewText("person")}}.Eval(r))
	require.True(t, Atom{Column: ColRecordID, Operator: Eq, Args: []codec.Value{codec.NewText(record.ID{ClassID: 1, PositionalID: 2}.String())}}.Eval(r))
}

func TestIsNull(t *testing.T) {
	r := row(map[string]codec.Value{})
	require.True(t, Atom{Column: "missing", Operator: IsNull}.Eval(r))
	r2 := row(map[string]codec.Value{"name": codec.NewText("Ann")})
	require.False(t, Atom{Column: "name", Operator: IsNull}.Eval(r2))
}
