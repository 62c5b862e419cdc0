package quotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideApproval(t *testing.T) {
	cases := []struct {
		name   string
		checks []PriceCheck
		want   bool
		state  State
	}{
		{"no services", nil, false, StatePending},
		{"at minimum", []PriceCheck{{ServiceID: 1, FinalPrice: dec("80"), MinimumPrice: dec("80")}}, false, StatePending},
		{"above minimum", []PriceCheck{{ServiceID: 1, FinalPrice: dec("95"), MinimumPrice: dec("80")}}, false, StatePending},
		{"one below", []PriceCheck{
			{ServiceID: 1, FinalPrice: dec("95"), MinimumPrice: dec("80")},
			{ServiceID: 2, FinalPrice: dec("79.99"), MinimumPrice: dec("80")},
		}, true, StatePendingApproval},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DecideApproval(tc.checks)
			assert.Equal(t, tc.want, d.RequiresApproval)
			assert.Equal(t, tc.state, d.InitialState())
			if tc.want {
				assert.Len(t, d.Violations, 1)
				assert.Equal(t, int64(2), d.Violations[0].ServiceID)
			}
		})
	}
}
