package parse_test

import (
	"testing"
	"time"

	"fleahist/internal/domain"
	"fleahist/internal/parse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"¥1,500", 1500},
		{"￥1,234,567", 1234567},
		{"1,500", 1500},
		{"300", 300},
	}
	for _, tc := range cases {
		got, err := parse.Price(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestPrice_Invalid(t *testing.T) {
	_, err := parse.Price("無料")
	assert.Error(t, err)
}

func TestRate(t *testing.T) {
	got, err := parse.Rate("10%")
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestSoldTotal(t *testing.T) {
	got, err := parse.SoldTotal("1～20件/全100件")
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}

func TestSoldTotal_BadFormat(t *testing.T) {
	_, err := parse.SoldTotal("no total here")
	assert.ErrorIs(t, err, domain.ErrPageFormat)
}

func TestDate(t *testing.T) {
	got, err := parse.Date("2025/03/14")
	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 14, got.Day())
	_, offset := got.Zone()
	assert.Equal(t, 9*60*60, offset)
}

func TestDateTime_BothLayouts(t *testing.T) {
	a, err := parse.DateTime("2025年03月14日 21:05")
	require.NoError(t, err)
	b, err := parse.DateTime("2025/03/14 21:05")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.Equal(t, 21, a.Hour())
}

func TestDateTime_BadFormat(t *testing.T) {
	_, err := parse.DateTime("last tuesday")
	assert.Error(t, err)
}
