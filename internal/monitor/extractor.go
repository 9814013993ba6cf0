package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

// ParseCount converts the results counter text. Anything that is not a
// non-negative integer counts as zero results.
func ParseCount(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Extract reads every result row in page order.
func Extract(ctx context.Context, view bid.PageView) ([]bid.Record, error) {
	text, err := view.ResultCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("read result count: %w", err)
	}
	count := ParseCount(text)
	if count == 0 {
		return []bid.Record{}, nil
	}

	records := make([]bid.Record, 0, count)
	for index := 1; index <= count; index++ {
		rec, err := extractRow(ctx, view, index)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func extractRow(ctx context.Context, view bid.PageView, index int) (bid.Record, error) {
	values := make(map[bid.Field]string, len(bid.Fields))
	for _, field := range bid.Fields {
		v, err := view.RowField(ctx, index, field)
		if err != nil {
			return bid.Record{}, fmt.Errorf("read row %d %s: %w", index, field, err)
		}
		values[field] = strings.TrimSpace(v)
	}
	return bid.Record{
		Name:         values[bid.FieldName],
		Photo:        values[bid.FieldPhoto],
		Timestamp:    values[bid.FieldTimestamp],
		Nickname:     values[bid.FieldNickname],
		ContractType: values[bid.FieldContractType],
	}, nil
}
