package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr error
	}{
		{name: "whole amount", input: "110", want: 11000},
		{name: "one decimal", input: "110.5", want: 11050},
		{name: "two decimals", input: "0.01", want: 1},
		{name: "trailing zeros beyond scale", input: "12.3400", want: 1234},
		{name: "zero", input: "0", wantErr: ErrNotPositive},
		{name: "negative", input: "-5", wantErr: ErrNotPositive},
		{name: "fractional cents", input: "1.005", wantErr: ErrTooPrecise},
		{name: "overflow", input: "100000000000000000000", wantErr: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse("ten dollars")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "110.50", Format(11050))
	assert.Equal(t, "0.01", Format(1))
	assert.True(t, FromMinor(12000).Equal(decimal.NewFromInt(120)))
}
