package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
)

func TestDatePredicate(t *testing.T) {
	r := dialect.AthenaRenderer{}

	tests := []struct {
		name string
		opt  models.DateOption
		want string
	}{
		{
			name: "any restricts nothing",
			opt:  models.DateOption{Any: true},
			want: "",
		},
		{
			name: "zero value restricts nothing",
			opt:  models.DateOption{},
			want: "",
		},
		{
			name: "expiring in",
			opt:  models.DateOption{Kind: models.DateFilterRelative, Days: 30, Operator: models.DateOpExpiringIn},
			want: "(c.expiration_date >= current_date AND c.expiration_date <= date_add('day', 30, current_date))",
		},
		{
			name: "is before",
			opt:  models.DateOption{Kind: models.DateFilterRelative, Days: 7, Operator: models.DateOpIsBefore},
			want: "c.expiration_date < date_add('day', -7, current_date)",
		},
		{
			name: "is after",
			opt:  models.DateOption{Kind: models.DateFilterRelative, Days: 7, Operator: models.DateOpIsAfter},
			want: "c.expiration_date >= date_add('day', -7, current_date)",
		},
		{
			name: "relative without days restricts nothing",
			opt:  models.DateOption{Kind: models.DateFilterRelative, Operator: models.DateOpIsAfter},
			want: "",
		},
		{
			name: "closed range",
			opt:  models.DateOption{Kind: models.DateFilterRange, From: "2026-01-01", To: "2026-03-31"},
			want: "(c.expiration_date >= DATE '2026-01-01' AND c.expiration_date <= DATE '2026-03-31')",
		},
		{
			name: "open-ended range",
			opt:  models.DateOption{Kind: models.DateFilterRange, From: "2026-01-01"},
			want: "c.expiration_date >= DATE '2026-01-01'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, datePredicate(r, "c.expiration_date", tt.opt))
		})
	}
}

func TestCombineDatePredicates(t *testing.T) {
	assert.Equal(t, "", combineDatePredicates(nil, models.AllConditions))
	assert.Equal(t, "", combineDatePredicates([]string{"", ""}, models.AllConditions))
	assert.Equal(t, "a = 1", combineDatePredicates([]string{"", "a = 1"}, models.AtLeastOneCondition))
	assert.Equal(t, "(a = 1 AND b = 2)", combineDatePredicates([]string{"a = 1", "b = 2"}, models.AllConditions))
	assert.Equal(t, "(a = 1 OR b = 2)", combineDatePredicates([]string{"a = 1", "b = 2"}, models.AtLeastOneCondition))
}
