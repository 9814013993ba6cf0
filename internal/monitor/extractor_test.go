package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

func TestParseCount(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"0":     0,
		"3":     3,
		" 12\n": 12,
		"":      0,
		"abc":   0,
		"-4":    0,
		"1.5":   0,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseCount(in), "input %q", in)
	}
}

func TestExtractZeroDoesNoLookups(t *testing.T) {
	t.Parallel()

	s := &fakeSession{countText: "0", rows: []bid.Record{joao}}
	records, err := Extract(context.Background(), s)
	require.NoError(t, err)
	require.Empty(t, records)
	require.NotNil(t, records)
	require.Zero(t, s.fieldLookups)
}

func TestExtractNonNumericIsEmpty(t *testing.T) {
	t.Parallel()

	s := &fakeSession{countText: "Nenhum registro", rows: []bid.Record{joao}}
	records, err := Extract(context.Background(), s)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Zero(t, s.fieldLookups)
}

func TestExtractPreservesPageOrder(t *testing.T) {
	t.Parallel()

	rows := []bid.Record{
		{Name: "A", Photo: "http://x/a.png", Timestamp: "t1", Nickname: "a", ContractType: "PROFISSIONAL"},
		{Name: "B", Photo: "http://x/b.png", Timestamp: "t2", Nickname: "b", ContractType: "EMPRESTIMO"},
		{Name: "C", Photo: "http://x/c.png", Timestamp: "t3", Nickname: "c", ContractType: "RESCISAO"},
	}
	s := &fakeSession{countText: "3", rows: rows}
	records, err := Extract(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, rows, records)
	require.Equal(t, 15, s.fieldLookups)
}

func TestExtractTrimsFieldText(t *testing.T) {
	t.Parallel()

	s := &fakeSession{countText: "1", rows: []bid.Record{{Name: "  João\n", Nickname: "\tJoãozinho "}}}
	records, err := Extract(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, "João", records[0].Name)
	require.Equal(t, "Joãozinho", records[0].Nickname)
}

func TestExtractFieldErrorIsFatal(t *testing.T) {
	t.Parallel()

	s := &fakeSession{countText: "2", rows: []bid.Record{joao, joao}, rowErr: errors.New("node not found")}
	_, err := Extract(context.Background(), s)
	require.ErrorContains(t, err, "read row 1 name")
}

func TestDriverFormUsesOperatingTimezone(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	d := NewDriver(Target{State: "BA", ClubID: "20018", ClubLabel: "Vitória-BA(20018)", Location: loc}, nil)

	// 01:30 UTC on Jan 3 is still Jan 2 in Sao Paulo.
	form := d.Form(time.Date(2024, time.January, 3, 1, 30, 0, 0, time.UTC))
	require.Equal(t, bid.SearchForm{Date: "02/01/2024", State: "BA", ClubID: "20018", ClubLabel: "Vitória-BA(20018)"}, form)
}
