package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enlacemx/recordkit/internal/domain/model"
)

func TestConditional_MarshalTriple(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cond model.Conditional
		want string
	}{
		{
			name: "equality",
			cond: model.Conditional{Key: "email", Operator: model.OpEq, Value: "ana@example.com"},
			want: `["email","=","ana@example.com"]`,
		},
		{
			name: "is null",
			cond: model.Conditional{Key: "deleted_at", Operator: model.OpIsNull, Value: nil},
			want: `["deleted_at","IS NULL",null]`,
		},
		{
			name: "numeric comparison",
			cond: model.Conditional{Key: "saldo", Operator: model.OpGte, Value: 100},
			want: `["saldo",">=",100]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := json.Marshal(tt.cond)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestConditional_UnmarshalTriple(t *testing.T) {
	t.Parallel()

	var cond model.Conditional
	require.NoError(t, json.Unmarshal([]byte(`["saldo",">",100]`), &cond))

	require.Equal(t, "saldo", cond.Key)
	require.Equal(t, model.OpGt, cond.Operator)
	require.Equal(t, float64(100), cond.Value)
}

func TestConditional_UnmarshalRejectsMalformedTriples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "too short", raw: `["saldo",">"]`},
		{name: "too long", raw: `["saldo",">",1,2]`},
		{name: "non-string key", raw: `[1,">",100]`},
		{name: "non-string operator", raw: `["saldo",2,100]`},
		{name: "not an array", raw: `{"key":"saldo"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var cond model.Conditional
			require.Error(t, json.Unmarshal([]byte(tt.raw), &cond))
		})
	}
}

func TestConditional_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cond    model.Conditional
		wantErr bool
	}{
		{name: "equality", cond: model.Conditional{Key: "email", Operator: model.OpEq, Value: "a"}},
		{name: "null with sentinel", cond: model.Conditional{Key: "deleted_at", Operator: model.OpIsNotNull, Value: nil}},
		{name: "empty token value", cond: model.Conditional{Key: "notas", Operator: model.OpEq, Value: model.EmptyToken}},
		{name: "null without sentinel", cond: model.Conditional{Key: "email", Operator: model.OpEq, Value: nil}, wantErr: true},
		{name: "unknown operator", cond: model.Conditional{Key: "email", Operator: "LIKE", Value: "a"}, wantErr: true},
		{name: "missing key", cond: model.Conditional{Operator: model.OpEq, Value: "a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cond.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidArgumentCombination)

				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPaginator_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, model.Paginator{Page: 1, PerPage: 999}.Validate())
	require.ErrorIs(t, model.Paginator{Page: 0, PerPage: 10}.Validate(), model.ErrInvalidArgumentCombination)
	require.ErrorIs(t, model.Paginator{Page: 1, PerPage: 0}.Validate(), model.ErrInvalidArgumentCombination)
}
